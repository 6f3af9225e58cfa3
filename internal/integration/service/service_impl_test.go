package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/integration/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Integration{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(db),
	})
	return svc, fake, db
}

func TestBeginAuthorizationIssuesFreshState(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	orgID := snowflake.ID(1001)
	res, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID:    orgID,
		Platform: domain.PlatformShopify,
		Shop:     "https://Demo-Store.myshopify.com/",
		UserID:   snowflake.ID(7),
	})
	require.NoError(t, err)
	assert.Len(t, res.State, 64)
	assert.Len(t, res.Nonce, 64)
	assert.Equal(t, "demo-store", res.Shop)

	row, err := svc.FindByOrgAndPlatform(ctx, orgID, domain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, row.Status)
	require.NotNil(t, row.PendingState)
	assert.Equal(t, res.State, *row.PendingState)
}

func TestBeginAuthorizationOverwritesEarlierHandshake(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(1002)

	first, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID: orgID, Platform: domain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	second, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID: orgID, Platform: domain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)
	require.NotEqual(t, first.State, second.State)

	// The superseded state no longer redeems.
	_, err = svc.ConsumePending(ctx, domain.PlatformShopify, first.State, "demo-store")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	session, err := svc.ConsumePending(ctx, domain.PlatformShopify, second.State, "demo-store")
	require.NoError(t, err)
	assert.Equal(t, "demo-store", session.Shop)
}

func TestConsumePendingIsSingleUse(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	res, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID: snowflake.ID(1003), Platform: domain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	_, err = svc.ConsumePending(ctx, domain.PlatformShopify, res.State, "demo-store")
	require.NoError(t, err)

	_, err = svc.ConsumePending(ctx, domain.PlatformShopify, res.State, "demo-store")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestConsumePendingExpires(t *testing.T) {
	svc, fake, _ := setupService(t)
	ctx := context.Background()

	res, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID: snowflake.ID(1004), Platform: domain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	fake.Advance(5*time.Minute + time.Second)

	_, err = svc.ConsumePending(ctx, domain.PlatformShopify, res.State, "demo-store")
	assert.ErrorIs(t, err, domain.ErrStateExpired)

	// Expiry still burns the state.
	_, err = svc.ConsumePending(ctx, domain.PlatformShopify, res.State, "demo-store")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestConsumePendingShopMismatch(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	res, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID: snowflake.ID(1005), Platform: domain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	_, err = svc.ConsumePending(ctx, domain.PlatformShopify, res.State, "other-store")
	assert.ErrorIs(t, err, domain.ErrShopMismatch)
}

func TestConsumePendingUnknownState(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.ConsumePending(context.Background(), domain.PlatformShopify, "deadbeef", "demo-store")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMarkConnectedRequiresToken(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	res, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID: snowflake.ID(1006), Platform: domain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	err = svc.MarkConnected(ctx, res.Integration.ID, "", "read_orders", "demo-store")
	assert.ErrorIs(t, err, domain.ErrMissingToken)

	err = svc.MarkConnected(ctx, res.Integration.ID, "ciphertext", "read_orders", "demo-store")
	require.NoError(t, err)

	row, err := svc.GetByID(ctx, res.Integration.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, row.Status)
	assert.NotNil(t, row.ConnectedAt)
	assert.Empty(t, row.LastError)
}

func TestDisconnectClearsTokenKeepsRow(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	orgID := snowflake.ID(1007)

	res, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID: orgID, Platform: domain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)
	require.NoError(t, svc.MarkConnected(ctx, res.Integration.ID, "ciphertext", "read_orders", "demo-store"))

	require.NoError(t, svc.Disconnect(ctx, orgID, domain.PlatformShopify))

	row, err := svc.GetByID(ctx, res.Integration.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, row.Status)
	assert.Empty(t, row.EncryptedAccessToken)
	assert.Nil(t, row.ConnectedAt)
	assert.Nil(t, row.PendingState)
}

func TestMarkErrorRecordsMessage(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	res, err := svc.BeginAuthorization(ctx, domain.BeginAuthorizationRequest{
		OrgID: snowflake.ID(1008), Platform: domain.PlatformStripe,
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkError(ctx, res.Integration.ID, "provider unreachable"))

	row, err := svc.GetByID(ctx, res.Integration.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, row.Status)
	assert.Equal(t, "provider unreachable", row.LastError)
}

func TestSanitizeShopDomain(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "demo-store", want: "demo-store"},
		{in: "Demo-Store", want: "demo-store"},
		{in: "demo-store.myshopify.com", want: "demo-store"},
		{in: "https://demo-store.myshopify.com/admin", want: "demo-store"},
		{in: "  demo-store  ", want: "demo-store"},
		{in: "", wantErr: true},
		{in: "-leading-dash", wantErr: true},
		{in: "bad store", wantErr: true},
		{in: "evil.example.com", wantErr: true},
	}
	for _, tc := range cases {
		got, err := domain.SanitizeShopDomain(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, domain.ErrInvalidShopDomain, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
