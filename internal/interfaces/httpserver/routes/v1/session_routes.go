package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"wahub/services/whatsapp-api/internal/interfaces/httpserver/handlers"
	sessionreq "wahub/services/whatsapp-api/internal/interfaces/httpserver/requests/session"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver/responses"
	sessionres "wahub/services/whatsapp-api/internal/interfaces/httpserver/responses/session"
	"wahub/services/whatsapp-api/internal/utils/platformerrors"
)

const qrImageSize = 256

// RegisterAdminRoutes registers the operator endpoints.
func RegisterAdminRoutes(router gin.IRoutes, handler *handlers.SessionHandler) {
	router.POST("/tokens", provisionToken(handler))
}

// RegisterSessionRoutes registers the tenant session lifecycle endpoints.
func RegisterSessionRoutes(router gin.IRoutes, handler *handlers.SessionHandler) {
	router.POST("/start", startSession(handler))
	router.POST("/stop", stopSession(handler))
	router.GET("/status", getStatus(handler))
}

// provisionToken godoc
// @Summary      Provision a tenant API token
// @Description  Registers the tenant if needed and issues a fresh bearer token, replacing any previous one.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body sessionreq.ProvisionTokenRequest true "Tenant to provision"
// @Success      201 {object} sessionres.TokenResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Security     AdminSecret
// @Router       /admin/tokens [post]
func provisionToken(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessionreq.ProvisionTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			platformerrors.WriteValidationError(c, "tenant_id is required")
			return
		}

		token, err := handler.ProvisionToken(c.Request.Context(), req.TenantID, req.WebhookURL)
		if err != nil {
			responses.HandleError(c, err, "failed to provision token")
			return
		}

		c.JSON(http.StatusCreated, sessionres.NewTokenResponse(req.TenantID, token))
	}
}

// startSession godoc
// @Summary      Start a session
// @Description  Ensures the tenant session exists and builds a connection unless one is already active. Returns the current lifecycle snapshot; poll status for the pairing payload.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        tenant path string true "Tenant ID"
// @Param        request body sessionreq.StartSessionRequest false "Optional webhook reconfiguration"
// @Success      200 {object} sessionres.StatusResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions/{tenant}/start [post]
func startSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenant")

		var req sessionreq.StartSessionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				platformerrors.WriteValidationError(c, "malformed request body")
				return
			}
		}

		rec, err := handler.StartSession(c.Request.Context(), tenantID, req.WebhookURL)
		if err != nil {
			responses.HandleError(c, err, "failed to start session")
			return
		}

		c.JSON(http.StatusOK, sessionres.NewStatusResponse(rec))
	}
}

// stopSession godoc
// @Summary      Stop a session
// @Description  Logs the session out, wipes its credentials and moves it to DISCONNECTED. Safe to call on an already stopped session.
// @Tags         Sessions
// @Produce      json
// @Param        tenant path string true "Tenant ID"
// @Success      200 {object} sessionres.StopResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions/{tenant}/stop [post]
func stopSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenant")

		if err := handler.StopSession(c.Request.Context(), tenantID); err != nil {
			responses.HandleError(c, err, "failed to stop session")
			return
		}

		c.JSON(http.StatusOK, sessionres.StopResponse{Tenant: tenantID, Stopped: true})
	}
}

// getStatus godoc
// @Summary      Get session status
// @Description  Returns the tenant's lifecycle snapshot. With format=image and a pending pairing payload, returns the payload rendered as a QR PNG instead.
// @Tags         Sessions
// @Produce      json
// @Produce      png
// @Param        tenant path string true "Tenant ID"
// @Param        format query string false "Set to 'image' for a QR PNG of the pairing payload"
// @Success      200 {object} sessionres.StatusResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions/{tenant}/status [get]
func getStatus(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenant")

		rec, err := handler.GetStatus(c.Request.Context(), tenantID)
		if err != nil {
			responses.HandleError(c, err, "failed to get session status")
			return
		}

		if c.Query("format") == "image" {
			if rec.PairingPayload == "" {
				platformerrors.WriteNotFound(c, "no pairing payload to render")
				return
			}
			png, err := qrcode.Encode(rec.PairingPayload, qrcode.Medium, qrImageSize)
			if err != nil {
				responses.HandleError(c, err, "failed to render pairing payload")
				return
			}
			c.Data(http.StatusOK, "image/png", png)
			return
		}

		c.JSON(http.StatusOK, sessionres.NewStatusResponse(rec))
	}
}
