package entities

import (
	"time"
)

// Session is the persisted lifecycle record for one tenant.
type Session struct {
	ID             uint   `gorm:"primaryKey"`
	TenantID       string `gorm:"uniqueIndex;size:64"`
	Status         string `gorm:"size:32;index"`
	PairingPayload string `gorm:"type:text"`
	WebhookURL     string `gorm:"type:text"`
	Identity       string `gorm:"size:128"`
	Token          string `gorm:"size:128;index"`
	RetryCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
