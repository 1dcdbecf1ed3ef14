package v1

import (
	"github.com/gin-gonic/gin"

	"wahub/services/whatsapp-api/internal/interfaces/httpserver/handlers"
)

// Routes holds the v1 route configuration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes creates a new v1 routes instance.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{
		handlers: handlerProvider,
	}
}

// Register registers all v1 routes on the engine. Operator endpoints sit
// behind the admin middleware, tenant endpoints behind the per-tenant token
// middleware.
func (r *Routes) Register(engine *gin.Engine, adminAuth, tenantAuth gin.HandlerFunc) {
	v1 := engine.Group("/v1")

	admin := v1.Group("/admin")
	if adminAuth != nil {
		admin.Use(adminAuth)
	}
	RegisterAdminRoutes(admin, r.handlers.Session)

	tenants := v1.Group("/sessions/:tenant")
	if tenantAuth != nil {
		tenants.Use(tenantAuth)
	}
	RegisterSessionRoutes(tenants, r.handlers.Session)
	RegisterMessageRoutes(tenants, r.handlers.Message)
}
