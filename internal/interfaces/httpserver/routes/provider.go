package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver/handlers"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver/middlewares"
	v1 "wahub/services/whatsapp-api/internal/interfaces/httpserver/routes/v1"
)

// Provider holds all route providers.
type Provider struct {
	V1          *v1.Routes
	adminSecret string
	records     session.Store
	log         zerolog.Logger
}

// NewProvider creates a new route provider.
func NewProvider(handlerProvider *handlers.Provider, records session.Store, adminSecret string, log zerolog.Logger) *Provider {
	return &Provider{
		V1:          v1.NewRoutes(handlerProvider),
		adminSecret: adminSecret,
		records:     records,
		log:         log,
	}
}

// Register registers all routes on the engine.
func (p *Provider) Register(engine *gin.Engine) {
	p.V1.Register(engine,
		middlewares.AdminAuth(p.adminSecret),
		middlewares.TenantAuth(p.records, p.log),
	)
}
