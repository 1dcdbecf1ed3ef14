package session

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/infrastructure/database/entities"
	"wahub/services/whatsapp-api/internal/infrastructure/metrics"
	"wahub/services/whatsapp-api/internal/utils/platformerrors"
)

// PostgresRepository persists session records through GORM.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository constructs the session repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ domain.Store = (*PostgresRepository)(nil)

// Ensure returns the tenant's record, inserting an UNINITIALIZED one when
// missing. The insert is conflict-tolerant so concurrent first requests for
// the same tenant converge on one row.
func (r *PostgresRepository) Ensure(ctx context.Context, tenantID string) (*domain.Record, error) {
	start := time.Now()
	entity := entities.Session{
		TenantID: tenantID,
		Status:   string(domain.StatusUninitialized),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoNothing: true,
		}).
		Create(&entity).Error
	metrics.RecordDBQuery("session_ensure", time.Since(start).Seconds())
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to ensure session record",
			err,
			"session-ensure-error",
		)
	}
	return r.Find(ctx, tenantID)
}

// Find loads the tenant's record.
func (r *PostgresRepository) Find(ctx context.Context, tenantID string) (*domain.Record, error) {
	start := time.Now()
	var entity entities.Session
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&entity).Error
	metrics.RecordDBQuery("session_find", time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"session not found for tenant",
				domain.ErrRecordNotFound,
				"session-find-not-found",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find session record",
			err,
			"session-find-error",
		)
	}
	return toDomain(&entity), nil
}

// SetWebhookURL updates the callback target.
func (r *PostgresRepository) SetWebhookURL(ctx context.Context, tenantID, url string) error {
	return r.update(ctx, tenantID, "session_set_webhook", map[string]any{
		"webhook_url": url,
	})
}

// SetToken updates the tenant's API token.
func (r *PostgresRepository) SetToken(ctx context.Context, tenantID, token string) error {
	return r.update(ctx, tenantID, "session_set_token", map[string]any{
		"token": token,
	})
}

// MarkPairing stores a fresh pairing payload and moves to QR_READY.
func (r *PostgresRepository) MarkPairing(ctx context.Context, tenantID, payload string) error {
	return r.update(ctx, tenantID, "session_mark_pairing", map[string]any{
		"status":          string(domain.StatusQRReady),
		"pairing_payload": payload,
	})
}

// MarkConnected records the identity, clears the pairing payload and zeroes
// the retry counter.
func (r *PostgresRepository) MarkConnected(ctx context.Context, tenantID, identity string) error {
	return r.update(ctx, tenantID, "session_mark_connected", map[string]any{
		"status":          string(domain.StatusConnected),
		"identity":        identity,
		"pairing_payload": "",
		"retry_count":     0,
	})
}

// MarkReconnecting keeps the identity and mirrors the attempt counter.
func (r *PostgresRepository) MarkReconnecting(ctx context.Context, tenantID string, attempt int) error {
	return r.update(ctx, tenantID, "session_mark_reconnecting", map[string]any{
		"status":          string(domain.StatusReconnecting),
		"pairing_payload": "",
		"retry_count":     attempt,
	})
}

// MarkDisconnected is the terminal transition.
func (r *PostgresRepository) MarkDisconnected(ctx context.Context, tenantID string) error {
	return r.update(ctx, tenantID, "session_mark_disconnected", map[string]any{
		"status":          string(domain.StatusDisconnected),
		"identity":        "",
		"pairing_payload": "",
		"retry_count":     0,
	})
}

// ListResumable returns every record in CONNECTED or RECONNECTING state.
func (r *PostgresRepository) ListResumable(ctx context.Context) ([]*domain.Record, error) {
	start := time.Now()
	var rows []entities.Session
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			string(domain.StatusConnected),
			string(domain.StatusReconnecting),
		}).
		Order("tenant_id").
		Find(&rows).Error
	metrics.RecordDBQuery("session_list_resumable", time.Since(start).Seconds())
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list resumable sessions",
			err,
			"session-list-error",
		)
	}

	records := make([]*domain.Record, 0, len(rows))
	for i := range rows {
		records = append(records, toDomain(&rows[i]))
	}
	return records, nil
}

func (r *PostgresRepository) update(ctx context.Context, tenantID, queryType string, fields map[string]any) error {
	start := time.Now()
	res := r.db.WithContext(ctx).
		Model(&entities.Session{}).
		Where("tenant_id = ?", tenantID).
		Updates(fields)
	metrics.RecordDBQuery(queryType, time.Since(start).Seconds())
	if res.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update session record",
			res.Error,
			"session-update-error",
		)
	}
	if res.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"session not found for tenant",
			domain.ErrRecordNotFound,
			"session-update-not-found",
		)
	}
	return nil
}

func toDomain(e *entities.Session) *domain.Record {
	return &domain.Record{
		TenantID:       e.TenantID,
		Status:         domain.Status(e.Status),
		PairingPayload: e.PairingPayload,
		WebhookURL:     e.WebhookURL,
		Identity:       e.Identity,
		Token:          e.Token,
		RetryCount:     e.RetryCount,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}
