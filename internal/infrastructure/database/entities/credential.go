package entities

import (
	"time"
)

// Credential is one opaque authentication blob for a tenant, keyed by the
// transport-defined credential key.
type Credential struct {
	ID            uint   `gorm:"primaryKey"`
	TenantID      string `gorm:"size:64;uniqueIndex:idx_credential_tenant_key"`
	CredentialKey string `gorm:"size:128;uniqueIndex:idx_credential_tenant_key"`
	Blob          []byte `gorm:"type:bytea"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
