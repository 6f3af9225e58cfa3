package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DedupWindow is how long an open alert absorbs identical drafts.
const DedupWindow = time.Hour

type Repository interface {
	// FindOpenDuplicate returns an ACTIVE or ACKNOWLEDGED alert with the
	// same (org, type, title) created after the cutoff, if one exists.
	FindOpenDuplicate(ctx context.Context, orgID snowflake.ID, alertType Type, title string, since time.Time) (*Alert, error)
	Insert(ctx context.Context, alert *Alert) error
	Refresh(ctx context.Context, id snowflake.ID, description string, metadata map[string]any, at time.Time) error

	FindByID(ctx context.Context, orgID, id snowflake.ID) (*Alert, error)
	List(ctx context.Context, req ListRequest) ([]Alert, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, fields map[string]any) error

	// ExpireDue resolves open alerts whose expires_at has passed.
	ExpireDue(ctx context.Context, orgID snowflake.ID, now time.Time) (int64, error)
	ExpireDueAll(ctx context.Context, now time.Time) (int64, error)
}

type ListRequest struct {
	OrgID    snowflake.ID
	Statuses []Status

	// Cursor pagination: rows with ID < AfterID, newest first. A zero
	// Limit returns everything.
	AfterID snowflake.ID
	Limit   int
}

// Action is a lifecycle verb applied by a user.
type Action string

const (
	ActionAcknowledge Action = "acknowledge"
	ActionResolve     Action = "resolve"
	ActionDismiss     Action = "dismiss"
)

type ApplyActionRequest struct {
	OrgID   snowflake.ID
	AlertID snowflake.ID
	UserID  snowflake.ID
	Action  Action
}

type Service interface {
	// CreateOrMerge is the single entry point for new alerts: drafts
	// matching an open alert inside the dedup window refresh it instead
	// of inserting a duplicate. Returns the stored alert and whether it
	// was merged.
	CreateOrMerge(ctx context.Context, orgID snowflake.ID, draft Draft) (*Alert, bool, error)

	List(ctx context.Context, req ListRequest) ([]Alert, error)
	ApplyAction(ctx context.Context, req ApplyActionRequest) (*Alert, error)
	ExpireDue(ctx context.Context) (int64, error)
}
