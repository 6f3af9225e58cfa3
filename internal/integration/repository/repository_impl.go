package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pulseboard/pulseboard/internal/integration/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, integration *domain.Integration) error {
	return r.db.WithContext(ctx).Create(integration).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Integration, error) {
	var row domain.Integration
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) FindByOrgAndPlatform(ctx context.Context, orgID snowflake.ID, platform domain.Platform) (*domain.Integration, error) {
	var row domain.Integration
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND platform = ?", orgID, platform).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) List(ctx context.Context, orgID snowflake.ID) ([]domain.Integration, error) {
	var rows []domain.Integration
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("platform asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Integration, error) {
	var rows []domain.Integration
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) SetPending(ctx context.Context, id snowflake.ID, state, nonce, shop string, userID snowflake.ID, issuedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"pending_state":     state,
			"pending_nonce":     nonce,
			"pending_shop":      shop,
			"pending_user_id":   userID,
			"pending_issued_at": issuedAt,
			"updated_at":        issuedAt,
			"version":           gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConsumePendingByState reads the pending row and clears it with a
// conditional update so two concurrent callbacks cannot both win.
func (r *repo) ConsumePendingByState(ctx context.Context, platform domain.Platform, state string) (*domain.Integration, error) {
	if state == "" {
		return nil, domain.ErrInvalidState
	}

	var row domain.Integration
	err := r.db.WithContext(ctx).
		Where("platform = ? AND pending_state = ?", platform, state).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidState
		}
		return nil, err
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ? AND pending_state = ?", row.ID, state).
		Updates(map[string]any{
			"pending_state":     nil,
			"pending_nonce":     nil,
			"pending_shop":      nil,
			"pending_user_id":   nil,
			"pending_issued_at": nil,
			"version":           gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to another callback carrying the same state.
		return nil, domain.ErrInvalidState
	}

	return &row, nil
}

func (r *repo) ClearPending(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"pending_state":     nil,
			"pending_nonce":     nil,
			"pending_shop":      nil,
			"pending_user_id":   nil,
			"pending_issued_at": nil,
		}).Error
}

func (r *repo) MarkConnected(ctx context.Context, id snowflake.ID, encryptedToken, scopes, shop string, connectedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                 domain.StatusConnected,
			"encrypted_access_token": encryptedToken,
			"scopes":                 scopes,
			"shop_domain":            shop,
			"last_error":             "",
			"connected_at":           connectedAt,
			"updated_at":             connectedAt,
			"version":                gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) MarkError(ctx context.Context, id snowflake.ID, message string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.StatusError,
			"last_error": message,
			"updated_at": at,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Disconnect(ctx context.Context, id snowflake.ID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                 domain.StatusDisconnected,
			"encrypted_access_token": "",
			"scopes":                 "",
			"last_error":             "",
			"connected_at":           nil,
			"pending_state":          nil,
			"pending_nonce":          nil,
			"pending_shop":           nil,
			"pending_user_id":        nil,
			"pending_issued_at":      nil,
			"updated_at":             at,
			"version":                gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) TouchSync(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_sync_at": at,
			"updated_at":   at,
		}).Error
}

func (r *repo) UpdateMetadata(ctx context.Context, id snowflake.ID, metadata map[string]any, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"metadata":   datatypesJSON(metadata),
			"updated_at": at,
		}).Error
}
