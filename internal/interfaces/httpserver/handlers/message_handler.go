package handlers

import (
	"context"

	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/domain/transport"
	"wahub/services/whatsapp-api/internal/infrastructure/metrics"
	"wahub/services/whatsapp-api/internal/utils/platformerrors"
)

// MessageHandler handles outbound message HTTP requests.
type MessageHandler struct {
	service session.Service
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(service session.Service) *MessageHandler {
	return &MessageHandler{service: service}
}

// Send dispatches one outbound message over the tenant's active session.
func (h *MessageHandler) Send(ctx context.Context, tenantID, to string, content transport.Content) (transport.SendReceipt, error) {
	handle, ok := h.service.GetHandle(tenantID)
	if !ok {
		metrics.RecordMessageSent(string(content.Type), "no_session")
		return transport.SendReceipt{}, platformerrors.NewError(
			ctx,
			platformerrors.LayerHandler,
			platformerrors.ErrorTypeUnavailable,
			"no active session for tenant",
			nil,
			"message-send-no-session",
		)
	}

	receipt, err := handle.Send(ctx, to, content)
	if err != nil {
		metrics.RecordMessageSent(string(content.Type), "error")
		return transport.SendReceipt{}, platformerrors.NewError(
			ctx,
			platformerrors.LayerHandler,
			platformerrors.ErrorTypeExternal,
			"message dispatch failed",
			err,
			"message-send-error",
		)
	}

	metrics.RecordMessageSent(string(content.Type), "ok")
	return receipt, nil
}
