package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pulseboard/pulseboard/internal/alert/domain"
	"github.com/pulseboard/pulseboard/internal/alert/repository"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Alert{}))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))

	svc := New(Params{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(db),
	})
	return svc, fake
}

func lowStockDraft() domain.Draft {
	return domain.Draft{
		Type:        domain.TypeInventory,
		Severity:    domain.SeverityHigh,
		Title:       "Low stock: Widget",
		Description: "\"Widget\" has 3 units left.",
		Metadata:    map[string]any{"quantity": 3},
	}
}

func TestCreateOrMergeDedupsWithinWindow(t *testing.T) {
	svc, fake := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(5001)

	first, merged, err := svc.CreateOrMerge(ctx, orgID, lowStockDraft())
	require.NoError(t, err)
	assert.False(t, merged)
	assert.EqualValues(t, 1, first.Occurrences)

	fake.Advance(30 * time.Minute)

	draft := lowStockDraft()
	draft.Description = "\"Widget\" has 2 units left."
	second, merged, err := svc.CreateOrMerge(ctx, orgID, draft)
	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 2, second.Occurrences)
	assert.Equal(t, "\"Widget\" has 2 units left.", second.Description)
}

func TestCreateOrMergeNewRowAfterWindow(t *testing.T) {
	svc, fake := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(5002)

	first, _, err := svc.CreateOrMerge(ctx, orgID, lowStockDraft())
	require.NoError(t, err)

	fake.Advance(domain.DedupWindow + time.Minute)

	second, merged, err := svc.CreateOrMerge(ctx, orgID, lowStockDraft())
	require.NoError(t, err)
	assert.False(t, merged)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateOrMergeResolvedAlertDoesNotAbsorb(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(5003)

	first, _, err := svc.CreateOrMerge(ctx, orgID, lowStockDraft())
	require.NoError(t, err)

	_, err = svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: orgID, AlertID: first.ID, UserID: snowflake.ID(1), Action: domain.ActionResolve,
	})
	require.NoError(t, err)

	second, merged, err := svc.CreateOrMerge(ctx, orgID, lowStockDraft())
	require.NoError(t, err)
	assert.False(t, merged)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateOrMergeScopedToOrganization(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first, _, err := svc.CreateOrMerge(ctx, snowflake.ID(5004), lowStockDraft())
	require.NoError(t, err)

	second, merged, err := svc.CreateOrMerge(ctx, snowflake.ID(5005), lowStockDraft())
	require.NoError(t, err)
	assert.False(t, merged)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLifecycleTransitions(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(5006)
	userID := snowflake.ID(42)

	alert, _, err := svc.CreateOrMerge(ctx, orgID, lowStockDraft())
	require.NoError(t, err)

	acked, err := svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: orgID, AlertID: alert.ID, UserID: userID, Action: domain.ActionAcknowledge,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, userID, *acked.AcknowledgedBy)

	// Acknowledging twice is not a valid transition.
	_, err = svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: orgID, AlertID: alert.ID, UserID: userID, Action: domain.ActionAcknowledge,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	resolved, err := svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: orgID, AlertID: alert.ID, UserID: userID, Action: domain.ActionResolve,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	// RESOLVED is terminal.
	for _, action := range []domain.Action{domain.ActionAcknowledge, domain.ActionResolve, domain.ActionDismiss} {
		_, err = svc.ApplyAction(ctx, domain.ApplyActionRequest{
			OrgID: orgID, AlertID: alert.ID, UserID: userID, Action: action,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "action %s", action)
	}
}

func TestDismissIsTerminal(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(5007)

	alert, _, err := svc.CreateOrMerge(ctx, orgID, lowStockDraft())
	require.NoError(t, err)

	dismissed, err := svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: orgID, AlertID: alert.ID, UserID: snowflake.ID(1), Action: domain.ActionDismiss,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDismissed, dismissed.Status)

	_, err = svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: orgID, AlertID: alert.ID, UserID: snowflake.ID(1), Action: domain.ActionResolve,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyActionValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(5008)

	alert, _, err := svc.CreateOrMerge(ctx, orgID, lowStockDraft())
	require.NoError(t, err)

	_, err = svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: orgID, AlertID: alert.ID, Action: "escalate",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	_, err = svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: orgID, AlertID: snowflake.ID(999999), Action: domain.ActionResolve,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Alerts are invisible across organizations.
	_, err = svc.ApplyAction(ctx, domain.ApplyActionRequest{
		OrgID: snowflake.ID(1), AlertID: alert.ID, Action: domain.ActionResolve,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListSweepsExpiredAlerts(t *testing.T) {
	svc, fake := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(5009)

	draft := lowStockDraft()
	draft.TTL = 24 * time.Hour
	_, _, err := svc.CreateOrMerge(ctx, orgID, draft)
	require.NoError(t, err)

	fake.Advance(25 * time.Hour)

	open, err := svc.List(ctx, domain.ListRequest{
		OrgID:    orgID,
		Statuses: []domain.Status{domain.StatusActive, domain.StatusAcknowledged},
	})
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := svc.List(ctx, domain.ListRequest{OrgID: orgID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusResolved, all[0].Status)
	require.NotNil(t, all[0].ResolvedAt)
}
