package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wahub/services/whatsapp-api/internal/domain/transport"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver/handlers"
	sessionreq "wahub/services/whatsapp-api/internal/interfaces/httpserver/requests/session"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver/responses"
	sessionres "wahub/services/whatsapp-api/internal/interfaces/httpserver/responses/session"
	"wahub/services/whatsapp-api/internal/utils/platformerrors"
)

// RegisterMessageRoutes registers the outbound message endpoints.
func RegisterMessageRoutes(router gin.IRoutes, handler *handlers.MessageHandler) {
	router.POST("/messages", sendMessage(handler))
}

// sendMessage godoc
// @Summary      Send a message
// @Description  Dispatches one text, image, document, location, sticker or contact message over the tenant's active session.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Param        tenant path string true "Tenant ID"
// @Param        request body sessionreq.SendMessageRequest true "Message to send"
// @Success      200 {object} sessionres.SendMessageResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions/{tenant}/messages [post]
func sendMessage(handler *handlers.MessageHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenant")

		var req sessionreq.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			platformerrors.WriteValidationError(c, "to and a valid type are required")
			return
		}

		content, ok := contentFrom(req)
		if !ok {
			platformerrors.WriteValidationError(c, "missing fields for message type "+req.Type)
			return
		}

		receipt, err := handler.Send(c.Request.Context(), tenantID, req.To, content)
		if err != nil {
			responses.HandleError(c, err, "failed to send message")
			return
		}

		c.JSON(http.StatusOK, sessionres.SendMessageResponse{
			MessageID: receipt.MessageID,
			Timestamp: receipt.Timestamp.Unix(),
		})
	}
}

func contentFrom(req sessionreq.SendMessageRequest) (transport.Content, bool) {
	content := transport.Content{
		Type:         transport.ContentType(req.Type),
		Text:         req.Text,
		URL:          req.URL,
		Caption:      req.Caption,
		MimeType:     req.MimeType,
		FileName:     req.FileName,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
	}

	switch content.Type {
	case transport.ContentText:
		return content, content.Text != ""
	case transport.ContentImage, transport.ContentDocument, transport.ContentSticker:
		return content, content.URL != ""
	case transport.ContentContact:
		return content, content.ContactName != "" && content.ContactPhone != ""
	case transport.ContentLocation:
		return content, true
	default:
		return content, false
	}
}
