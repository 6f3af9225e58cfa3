package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Insert(ctx context.Context, integration *Integration) error
	FindByID(ctx context.Context, id snowflake.ID) (*Integration, error)
	FindByOrgAndPlatform(ctx context.Context, orgID snowflake.ID, platform Platform) (*Integration, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Integration, error)
	ListByStatus(ctx context.Context, status Status) ([]Integration, error)

	// SetPending overwrites the pending OAuth session on the row.
	SetPending(ctx context.Context, id snowflake.ID, state, nonce, shop string, userID snowflake.ID, issuedAt time.Time) error
	// ConsumePendingByState clears the pending fields in one conditional
	// update and returns the row as it was before the clear. A state that
	// matches no row, including one already consumed, is ErrInvalidState.
	ConsumePendingByState(ctx context.Context, platform Platform, state string) (*Integration, error)
	ClearPending(ctx context.Context, id snowflake.ID) error

	MarkConnected(ctx context.Context, id snowflake.ID, encryptedToken, scopes, shop string, connectedAt time.Time) error
	MarkError(ctx context.Context, id snowflake.ID, message string, at time.Time) error
	Disconnect(ctx context.Context, id snowflake.ID, at time.Time) error
	TouchSync(ctx context.Context, id snowflake.ID, at time.Time) error
	UpdateMetadata(ctx context.Context, id snowflake.ID, metadata map[string]any, at time.Time) error
}

// BeginAuthorizationRequest starts an OAuth handshake for one slot.
type BeginAuthorizationRequest struct {
	OrgID    snowflake.ID
	Platform Platform
	Shop     string
	UserID   snowflake.ID
}

type BeginAuthorizationResult struct {
	Integration *Integration
	State       string
	Nonce       string
	Shop        string
}

type Service interface {
	BeginAuthorization(ctx context.Context, req BeginAuthorizationRequest) (*BeginAuthorizationResult, error)
	ConsumePending(ctx context.Context, platform Platform, state, shop string) (*PendingSession, error)

	MarkConnected(ctx context.Context, id snowflake.ID, encryptedToken, scopes, shop string) error
	MarkError(ctx context.Context, id snowflake.ID, message string) error
	Disconnect(ctx context.Context, orgID snowflake.ID, platform Platform) error
	TouchSync(ctx context.Context, id snowflake.ID) error
	UpdateMetadata(ctx context.Context, id snowflake.ID, metadata map[string]any) error

	GetByID(ctx context.Context, id snowflake.ID) (*Integration, error)
	FindByOrgAndPlatform(ctx context.Context, orgID snowflake.ID, platform Platform) (*Integration, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Integration, error)
	ListConnected(ctx context.Context) ([]Integration, error)
	ListByStatus(ctx context.Context, status Status) ([]Integration, error)
}
