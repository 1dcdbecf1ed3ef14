package middlewares

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/utils/platformerrors"
)

// TenantIDKey is the context key carrying the authenticated tenant id.
const TenantIDKey = "tenant_id"

// AdminAuth guards operator endpoints with the shared admin secret.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := bearerToken(c)
		if provided == "" {
			provided = c.GetHeader("X-Admin-Secret")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			platformerrors.WriteUnauthorized(c, "invalid admin credentials")
			c.Abort()
			return
		}
		c.Next()
	}
}

// TenantAuth authenticates the :tenant path segment against the tenant's
// provisioned API token. The tenant id is stored in the request context on
// success.
func TenantAuth(records session.Store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenant")
		if tenantID == "" {
			platformerrors.WriteValidationError(c, "tenant id is required")
			c.Abort()
			return
		}

		token := bearerToken(c)
		if token == "" {
			platformerrors.WriteUnauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		rec, err := records.Find(c.Request.Context(), tenantID)
		if err != nil {
			if errors.Is(err, session.ErrRecordNotFound) {
				// Do not reveal whether the tenant exists.
				platformerrors.WriteUnauthorized(c, "invalid tenant credentials")
			} else {
				platformerrors.WriteError(c, err, log)
			}
			c.Abort()
			return
		}

		if rec.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(rec.Token)) != 1 {
			platformerrors.WriteUnauthorized(c, "invalid tenant credentials")
			c.Abort()
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
