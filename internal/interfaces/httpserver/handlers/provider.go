package handlers

import (
	"github.com/google/wire"

	"wahub/services/whatsapp-api/internal/domain/session"
)

// Provider holds all HTTP handlers.
type Provider struct {
	Session *SessionHandler
	Message *MessageHandler
}

// NewProvider creates a new handler provider.
func NewProvider(sessionService session.Service, records session.Store) *Provider {
	return &Provider{
		Session: NewSessionHandler(sessionService, records),
		Message: NewMessageHandler(sessionService),
	}
}

// HandlerProvider provides all handlers for wire.
var HandlerProvider = wire.NewSet(
	NewProvider,
)
