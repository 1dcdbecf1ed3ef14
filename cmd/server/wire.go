//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wahub/services/whatsapp-api/internal/config"
	"wahub/services/whatsapp-api/internal/domain/credential"
	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/domain/transport"
	"wahub/services/whatsapp-api/internal/infrastructure/database"
	credentialrepo "wahub/services/whatsapp-api/internal/infrastructure/repository/credential"
	sessionrepo "wahub/services/whatsapp-api/internal/infrastructure/repository/session"
	"wahub/services/whatsapp-api/internal/infrastructure/wameow"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver"
	"wahub/services/whatsapp-api/internal/webhook"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	ProvideDatabase,
	ProvideSessionStore,
	ProvideCredentialStore,
	ProvideDialer,
	ProvideNotifier,

	// Domain providers
	ProvideManager,
	ProvideSessionService,

	// Interface providers
	httpserver.New,

	// Application
	NewApplication,
)

// ProvideDatabase provides the GORM connection.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	return database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
}

// ProvideSessionStore provides the session record repository.
func ProvideSessionStore(db *gorm.DB) session.Store {
	return sessionrepo.NewPostgresRepository(db)
}

// ProvideCredentialStore provides the credential repository.
func ProvideCredentialStore(db *gorm.DB) credential.Store {
	return credentialrepo.NewPostgresRepository(db)
}

// ProvideDialer provides the whatsmeow transport dialer.
func ProvideDialer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (transport.Dialer, error) {
	return wameow.NewDialer(ctx, cfg.DatabaseURL, log)
}

// ProvideNotifier provides the webhook dispatcher.
func ProvideNotifier(records session.Store, cfg *config.Config, log zerolog.Logger) session.Notifier {
	return webhook.NewDispatcher(records, cfg.WebhookTimeout, log)
}

// ProvideManager provides the session lifecycle manager.
func ProvideManager(
	cfg *config.Config,
	records session.Store,
	creds credential.Store,
	dialer transport.Dialer,
	notifier session.Notifier,
	log zerolog.Logger,
) *session.Manager {
	return session.NewManager(
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
}

// ProvideSessionService provides the service interface consumed by handlers.
func ProvideSessionService(manager *session.Manager) session.Service {
	return manager
}

// CreateApplication creates the application with all dependencies wired.
func CreateApplication(
	ctx context.Context,
	cfg *config.Config,
	log zerolog.Logger,
) (*Application, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
