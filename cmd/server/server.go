// @title           WhatsApp Session API
// @version         1.0
// @description     Multi-tenant WhatsApp session lifecycle and messaging service.
// @description     Manages pairing, reconnection and teardown per tenant and forwards traffic to tenant webhooks.

// @host      localhost:8190
// @BasePath  /v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Per-tenant API token issued via /v1/admin/tokens

// @securityDefinitions.apikey AdminSecret
// @in header
// @name X-Admin-Secret
// @description Shared operator secret

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"wahub/services/whatsapp-api/internal/config"
	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/infrastructure/database"
	"wahub/services/whatsapp-api/internal/infrastructure/logger"
	"wahub/services/whatsapp-api/internal/infrastructure/observability"
	credentialrepo "wahub/services/whatsapp-api/internal/infrastructure/repository/credential"
	sessionrepo "wahub/services/whatsapp-api/internal/infrastructure/repository/session"
	"wahub/services/whatsapp-api/internal/infrastructure/wameow"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver"
	"wahub/services/whatsapp-api/internal/webhook"
)

// Application holds the main application components.
type Application struct {
	httpServer *httpserver.HTTPServer
	manager    *session.Manager
	cfg        *config.Config
	log        zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(httpServer *httpserver.HTTPServer, manager *session.Manager, cfg *config.Config, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		manager:    manager,
		cfg:        cfg,
		log:        log,
	}
}

// Start runs the application.
func (a *Application) Start(ctx context.Context) error {
	// Rebuild the sessions that were alive before the last shutdown.
	go func() {
		if err := a.manager.Restore(ctx); err != nil && ctx.Err() == nil {
			a.log.Error().Err(err).Msg("session restore failed")
		}
	}()

	// Run HTTP server (blocks until context cancelled)
	err := a.httpServer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	a.manager.Shutdown(shutdownCtx)

	return err
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup observability
	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	// Connect the service database and migrate the session schema
	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Repositories
	records := sessionrepo.NewPostgresRepository(db)
	creds := credentialrepo.NewPostgresRepository(db)

	// Transport dialer (shares the service database for device state)
	dialer, err := wameow.NewDialer(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize transport dialer")
	}

	// Webhook dispatcher
	notifier := webhook.NewDispatcher(records, cfg.WebhookTimeout, log)

	// Session lifecycle manager
	manager := session.NewManager(
		session.Config{
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			ReconnectDelay:       cfg.ReconnectDelay,
			RestoreInterval:      cfg.RestoreInterval,
		},
		records,
		creds,
		dialer,
		notifier,
		log,
	)

	// HTTP server
	httpServer := httpserver.New(cfg, log, manager, records)

	app := NewApplication(httpServer, manager, cfg, log)

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
