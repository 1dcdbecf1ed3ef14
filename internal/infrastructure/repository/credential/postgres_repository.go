package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "wahub/services/whatsapp-api/internal/domain/credential"
	"wahub/services/whatsapp-api/internal/infrastructure/database/entities"
	"wahub/services/whatsapp-api/internal/infrastructure/metrics"
	"wahub/services/whatsapp-api/internal/utils/platformerrors"
)

// readManyConcurrency caps the parallel lookups a single ReadMany fans out.
const readManyConcurrency = 8

// PostgresRepository persists credential blobs through GORM.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository constructs the credential repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ domain.Store = (*PostgresRepository)(nil)

// Write upserts a blob keyed by (tenant, key).
func (r *PostgresRepository) Write(ctx context.Context, tenantID, key string, blob []byte) error {
	start := time.Now()
	entity := entities.Credential{
		TenantID:      tenantID,
		CredentialKey: key,
		Blob:          blob,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "credential_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"blob", "updated_at"}),
		}).
		Create(&entity).Error
	metrics.RecordDBQuery("credential_write", time.Since(start).Seconds())
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to write credential",
			err,
			"credential-write-error",
		)
	}
	return nil
}

// Read retrieves a single blob.
func (r *PostgresRepository) Read(ctx context.Context, tenantID, key string) ([]byte, error) {
	start := time.Now()
	var entity entities.Credential
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND credential_key = ?", tenantID, key).
		First(&entity).Error
	metrics.RecordDBQuery("credential_read", time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"credential not found",
				domain.ErrNotFound,
				"credential-read-not-found",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to read credential",
			err,
			"credential-read-error",
		)
	}
	return entity.Blob, nil
}

// ReadMany fans the lookups out concurrently and collects the blobs that
// exist. Absent keys are simply omitted.
func (r *PostgresRepository) ReadMany(ctx context.Context, tenantID string, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readManyConcurrency)

	for _, key := range keys {
		g.Go(func() error {
			blob, err := r.Read(gctx, tenantID, key)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			result[key] = blob
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Remove deletes a single key. Deleting an absent key is a no-op.
func (r *PostgresRepository) Remove(ctx context.Context, tenantID, key string) error {
	start := time.Now()
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND credential_key = ?", tenantID, key).
		Delete(&entities.Credential{}).Error
	metrics.RecordDBQuery("credential_remove", time.Since(start).Seconds())
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to remove credential",
			err,
			"credential-remove-error",
		)
	}
	return nil
}

// PurgeAll deletes every blob for the tenant.
func (r *PostgresRepository) PurgeAll(ctx context.Context, tenantID string) error {
	start := time.Now()
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&entities.Credential{}).Error
	metrics.RecordDBQuery("credential_purge_all", time.Since(start).Seconds())
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to purge credentials",
			err,
			"credential-purge-error",
		)
	}
	return nil
}
