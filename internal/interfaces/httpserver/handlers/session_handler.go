package handlers

import (
	"context"
	"fmt"

	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/utils/idgen"
)

// SessionHandler handles session lifecycle HTTP requests.
type SessionHandler struct {
	service session.Service
	records session.Store
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(service session.Service, records session.Store) *SessionHandler {
	return &SessionHandler{service: service, records: records}
}

// ProvisionToken registers the tenant and issues a fresh API token,
// replacing any previous one.
func (h *SessionHandler) ProvisionToken(ctx context.Context, tenantID, webhookURL string) (string, error) {
	if _, err := h.records.Ensure(ctx, tenantID); err != nil {
		return "", err
	}
	if webhookURL != "" {
		if err := h.records.SetWebhookURL(ctx, tenantID, webhookURL); err != nil {
			return "", err
		}
	}

	token, err := idgen.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := h.records.SetToken(ctx, tenantID, token); err != nil {
		return "", err
	}
	return token, nil
}

// StartSession begins or resumes the tenant's session.
func (h *SessionHandler) StartSession(ctx context.Context, tenantID, webhookURL string) (*session.Record, error) {
	return h.service.StartSession(ctx, tenantID, webhookURL)
}

// StopSession tears the tenant's session down.
func (h *SessionHandler) StopSession(ctx context.Context, tenantID string) error {
	return h.service.StopSession(ctx, tenantID)
}

// GetStatus returns the tenant's lifecycle snapshot.
func (h *SessionHandler) GetStatus(ctx context.Context, tenantID string) (*session.Record, error) {
	return h.service.GetStatus(ctx, tenantID)
}
