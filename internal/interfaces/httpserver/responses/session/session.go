// Package sessionres contains HTTP response DTOs for session endpoints.
package sessionres

import (
	"time"

	domainsession "wahub/services/whatsapp-api/internal/domain/session"
)

// StatusResponse represents a tenant session in API responses.
type StatusResponse struct {
	Tenant         string `json:"tenant"`
	Status         string `json:"status"`
	PairingPayload string `json:"pairing_payload,omitempty"`
	Identity       string `json:"identity,omitempty"`
	WebhookURL     string `json:"webhook_url,omitempty"`
	RetryCount     int    `json:"retry_count,omitempty"`
	UpdatedAt      int64  `json:"updated_at"`
}

// NewStatusResponse creates a StatusResponse from a domain Record.
func NewStatusResponse(rec *domainsession.Record) *StatusResponse {
	return &StatusResponse{
		Tenant:         rec.TenantID,
		Status:         string(rec.Status),
		PairingPayload: rec.PairingPayload,
		Identity:       rec.Identity,
		WebhookURL:     rec.WebhookURL,
		RetryCount:     rec.RetryCount,
		UpdatedAt:      rec.UpdatedAt.Unix(),
	}
}

// TokenResponse is returned when a tenant token is provisioned.
type TokenResponse struct {
	Tenant    string `json:"tenant"`
	Token     string `json:"token"`
	CreatedAt int64  `json:"created_at"`
}

// NewTokenResponse creates a TokenResponse.
func NewTokenResponse(tenantID, token string) *TokenResponse {
	return &TokenResponse{
		Tenant:    tenantID,
		Token:     token,
		CreatedAt: time.Now().Unix(),
	}
}

// StopResponse is returned after an explicit session teardown.
type StopResponse struct {
	Tenant  string `json:"tenant"`
	Stopped bool   `json:"stopped"`
}

// SendMessageResponse reports the transport-assigned message id.
type SendMessageResponse struct {
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}
