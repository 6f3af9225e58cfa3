package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pulseboard/pulseboard/internal/alert/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) FindOpenDuplicate(ctx context.Context, orgID snowflake.ID, alertType domain.Type, title string, since time.Time) (*domain.Alert, error) {
	var alert domain.Alert
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND type = ? AND title = ?", orgID, alertType, title).
		Where("status IN ?", []domain.Status{domain.StatusActive, domain.StatusAcknowledged}).
		Where("created_at >= ?", since).
		Order("created_at desc").
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (r *repo) Insert(ctx context.Context, alert *domain.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *repo) Refresh(ctx context.Context, id snowflake.ID, description string, metadata map[string]any, at time.Time) error {
	updates := map[string]any{
		"description": description,
		"occurrences": gorm.Expr("occurrences + 1"),
		"updated_at":  at,
	}
	if metadata != nil {
		updates["metadata"] = datatypes.JSONMap(metadata)
	}
	return r.db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repo) FindByID(ctx context.Context, orgID, id snowflake.ID) (*domain.Alert, error) {
	var alert domain.Alert
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (r *repo) List(ctx context.Context, req domain.ListRequest) ([]domain.Alert, error) {
	stmt := r.db.WithContext(ctx).Where("organization_id = ?", req.OrgID)
	if len(req.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", req.Statuses)
	}
	// Snowflake IDs order by creation time, so the ID doubles as the
	// pagination cursor.
	if req.AfterID > 0 {
		stmt = stmt.Where("id < ?", req.AfterID)
	}
	if req.Limit > 0 {
		stmt = stmt.Limit(req.Limit)
	}

	var alerts []domain.Alert
	err := stmt.Order("id desc").Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *repo) UpdateStatus(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ExpireDue(ctx context.Context, orgID snowflake.ID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("organization_id = ?", orgID).
		Where("status IN ?", []domain.Status{domain.StatusActive, domain.StatusAcknowledged}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Updates(map[string]any{
			"status":      domain.StatusResolved,
			"resolved_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) ExpireDueAll(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("status IN ?", []domain.Status{domain.StatusActive, domain.StatusAcknowledged}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Updates(map[string]any{
			"status":      domain.StatusResolved,
			"resolved_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}
