package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"wahub/services/whatsapp-api/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes for the session domain.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Session{},
		&entities.Credential{},
	); err != nil {
		return err
	}

	log.Info().Msg("database schema up to date")
	return nil
}
