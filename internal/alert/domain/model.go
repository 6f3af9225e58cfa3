// Package domain contains the alert record and lifecycle types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeInventory   Type = "INVENTORY"
	TypePerformance Type = "PERFORMANCE"
	TypeIntegration Type = "INTEGRATION"
	TypeCustomer    Type = "CUSTOMER"
	TypeSecurity    Type = "SECURITY"
	TypeSystem      Type = "SYSTEM"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type Status string

const (
	StatusActive       Status = "ACTIVE"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
	StatusDismissed    Status = "DISMISSED"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

type Alert struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID      `gorm:"column:organization_id;not null;index:idx_org_status" json:"organization_id"`
	UserID         *snowflake.ID     `gorm:"column:user_id" json:"user_id,omitempty"`
	Type           Type              `gorm:"type:text;not null" json:"type"`
	Severity       Severity          `gorm:"type:text;not null" json:"severity"`
	Status         Status            `gorm:"type:text;not null;default:'ACTIVE';index:idx_org_status" json:"status"`
	Title          string            `gorm:"type:text;not null" json:"title"`
	Description    string            `gorm:"type:text;not null;default:''" json:"description"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	ActionURL      string            `gorm:"column:action_url;type:text;not null;default:''" json:"action_url,omitempty"`
	ActionLabel    string            `gorm:"column:action_label;type:text;not null;default:''" json:"action_label,omitempty"`
	Occurrences    int64             `gorm:"not null;default:1" json:"occurrences"`
	ExpiresAt      *time.Time        `gorm:"column:expires_at" json:"expires_at,omitempty"`
	AcknowledgedAt *time.Time        `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *snowflake.ID     `gorm:"column:acknowledged_by" json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time        `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy     *snowflake.ID     `gorm:"column:resolved_by" json:"resolved_by,omitempty"`
	DismissedAt    *time.Time        `gorm:"column:dismissed_at" json:"dismissed_at,omitempty"`
	DismissedBy    *snowflake.ID     `gorm:"column:dismissed_by" json:"dismissed_by,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Alert) TableName() string { return "alerts" }

// Draft is a rule-generated alert before dedup and persistence.
type Draft struct {
	Type        Type
	Severity    Severity
	Title       string
	Description string
	Metadata    map[string]any
	ActionURL   string
	ActionLabel string
	TTL         time.Duration
}
