// Package domain holds the normalized metric time series written by
// platform syncs and read by dashboards and alert rules.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// MetricType names one normalized series.
type MetricType string

const (
	MetricRevenue   MetricType = "revenue"
	MetricOrders    MetricType = "orders"
	MetricCustomers MetricType = "customers"
	MetricInventory MetricType = "inventory"
	MetricAdSpend   MetricType = "ad_spend"
	MetricSessions  MetricType = "sessions"
)

type DataPoint struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID      `gorm:"column:organization_id;not null;index:idx_org_metric_time" json:"organization_id"`
	IntegrationID snowflake.ID      `gorm:"column:integration_id;not null;index" json:"integration_id"`
	MetricType    MetricType        `gorm:"column:metric_type;type:text;not null;index:idx_org_metric_time" json:"metric_type"`
	Value         float64           `gorm:"not null;default:0" json:"value"`
	DateRecorded  time.Time         `gorm:"column:date_recorded;not null;index:idx_org_metric_time" json:"date_recorded"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (DataPoint) TableName() string { return "data_points" }

type Repository interface {
	// ReplaceWindow makes a re-sync of the same window idempotent:
	// existing rows for the (integration, metric, window) triple are
	// deleted and the fresh rows inserted in one transaction.
	ReplaceWindow(ctx context.Context, integrationID snowflake.ID, metric MetricType, from, to time.Time, points []DataPoint) error

	SumByMetric(ctx context.Context, orgID snowflake.ID, metric MetricType, from, to time.Time) (float64, error)
	ListByMetric(ctx context.Context, orgID snowflake.ID, metric MetricType, from, to time.Time) ([]DataPoint, error)
}
