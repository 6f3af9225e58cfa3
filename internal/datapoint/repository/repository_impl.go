package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pulseboard/pulseboard/internal/datapoint/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) ReplaceWindow(ctx context.Context, integrationID snowflake.ID, metric domain.MetricType, from, to time.Time, points []domain.DataPoint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("integration_id = ? AND metric_type = ? AND date_recorded >= ? AND date_recorded < ?",
				integrationID, metric, from, to).
			Delete(&domain.DataPoint{}).Error
		if err != nil {
			return err
		}
		if len(points) == 0 {
			return nil
		}
		return tx.CreateInBatches(points, 200).Error
	})
}

func (r *repo) SumByMetric(ctx context.Context, orgID snowflake.ID, metric domain.MetricType, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&domain.DataPoint{}).
		Select("COALESCE(SUM(value), 0)").
		Where("organization_id = ? AND metric_type = ? AND date_recorded >= ? AND date_recorded < ?",
			orgID, metric, from, to).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) ListByMetric(ctx context.Context, orgID snowflake.ID, metric domain.MetricType, from, to time.Time) ([]domain.DataPoint, error) {
	var points []domain.DataPoint
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND metric_type = ? AND date_recorded >= ? AND date_recorded < ?",
			orgID, metric, from, to).
		Order("date_recorded asc").
		Find(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}
