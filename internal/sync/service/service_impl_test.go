package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	alertdomain "github.com/pulseboard/pulseboard/internal/alert/domain"
	alertrepo "github.com/pulseboard/pulseboard/internal/alert/repository"
	alertservice "github.com/pulseboard/pulseboard/internal/alert/service"
	"github.com/pulseboard/pulseboard/internal/clock"
	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
	datapointrepo "github.com/pulseboard/pulseboard/internal/datapoint/repository"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	integrationrepo "github.com/pulseboard/pulseboard/internal/integration/repository"
	integrationservice "github.com/pulseboard/pulseboard/internal/integration/service"
	"github.com/pulseboard/pulseboard/internal/sync/domain"
	"github.com/pulseboard/pulseboard/internal/sync/syncers"
	"github.com/pulseboard/pulseboard/pkg/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeSyncer struct {
	platform integrationdomain.Platform
	result   *domain.Result
	err      error
	calls    int
	gotToken string
}

func (f *fakeSyncer) Platform() integrationdomain.Platform { return f.platform }

func (f *fakeSyncer) Sync(ctx context.Context, integration *integrationdomain.Integration, token string, window domain.Window) (*domain.Result, error) {
	f.calls++
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.Result{}, nil
}

type harness struct {
	svc          domain.Service
	fake         *fakeSyncer
	integrations integrationdomain.Service
	alerts       alertdomain.Service
	dataPoints   datapointdomain.Repository
	box          *secrets.Box
	clock        *clock.FakeClock
}

func setupSync(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&integrationdomain.Integration{},
		&datapointdomain.DataPoint{},
		&alertdomain.Alert{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	box, err := secrets.NewBox("sync-test-encryption-secret")
	require.NoError(t, err)

	integrations := integrationservice.New(integrationservice.Params{
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  integrationrepo.Provide(db),
	})
	alerts := alertservice.New(alertservice.Params{
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  alertrepo.Provide(db),
	})
	dataPoints := datapointrepo.Provide(db)

	syncer := &fakeSyncer{platform: integrationdomain.PlatformShopify}
	svc := New(Params{
		Log:          log,
		GenID:        node,
		Clock:        fake,
		Box:          box,
		Registry:     syncers.NewRegistry(syncer),
		Integrations: integrations,
		DataPoints:   dataPoints,
		Alerts:       alerts,
	})

	return &harness{
		svc:          svc,
		fake:         syncer,
		integrations: integrations,
		alerts:       alerts,
		dataPoints:   dataPoints,
		box:          box,
		clock:        fake,
	}
}

func (h *harness) connect(t *testing.T, orgID snowflake.ID, platform integrationdomain.Platform, token string) *integrationdomain.Integration {
	t.Helper()
	ctx := context.Background()

	shop := ""
	if platform == integrationdomain.PlatformShopify {
		shop = "acme-store"
	}
	begun, err := h.integrations.BeginAuthorization(ctx, integrationdomain.BeginAuthorizationRequest{
		OrgID:    orgID,
		Platform: platform,
		Shop:     shop,
	})
	require.NoError(t, err)

	encrypted, err := h.box.Encrypt(token)
	require.NoError(t, err)
	require.NoError(t, h.integrations.MarkConnected(ctx, begun.Integration.ID, encrypted, "read_orders", shop))

	row, err := h.integrations.GetByID(ctx, begun.Integration.ID)
	require.NoError(t, err)
	return row
}

func dayPoint(metric datapointdomain.MetricType, day time.Time, value float64) datapointdomain.DataPoint {
	return datapointdomain.DataPoint{MetricType: metric, Value: value, DateRecorded: day}
}

func TestSyncIntegrationWritesPoints(t *testing.T) {
	h := setupSync(t)
	ctx := context.Background()
	row := h.connect(t, snowflake.ID(7001), integrationdomain.PlatformShopify, "shpat_secret")

	day := h.clock.Now().UTC().Truncate(24 * time.Hour)
	h.fake.result = &domain.Result{
		Batches: []domain.Batch{
			{Metric: datapointdomain.MetricRevenue, Points: []datapointdomain.DataPoint{
				dayPoint(datapointdomain.MetricRevenue, day, 120.50),
				dayPoint(datapointdomain.MetricRevenue, day.AddDate(0, 0, -1), 80),
			}},
			{Metric: datapointdomain.MetricOrders, Points: []datapointdomain.DataPoint{
				dayPoint(datapointdomain.MetricOrders, day, 3),
			}},
		},
	}

	written, err := h.svc.SyncIntegration(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, written)
	assert.Equal(t, "shpat_secret", h.fake.gotToken)

	from := day.AddDate(0, 0, -30)
	to := day.AddDate(0, 0, 1)
	points, err := h.dataPoints.ListByMetric(ctx, row.OrgID, datapointdomain.MetricRevenue, from, to)
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, row.OrgID, p.OrgID)
		assert.Equal(t, row.ID, p.IntegrationID)
		assert.NotZero(t, p.ID)
	}

	refreshed, err := h.integrations.GetByID(ctx, row.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.LastSyncAt)
	assert.Equal(t, integrationdomain.StatusConnected, refreshed.Status)
}

func TestSyncIntegrationIsIdempotent(t *testing.T) {
	h := setupSync(t)
	ctx := context.Background()
	row := h.connect(t, snowflake.ID(7002), integrationdomain.PlatformShopify, "shpat_secret")

	day := h.clock.Now().UTC().Truncate(24 * time.Hour)
	h.fake.result = &domain.Result{
		Batches: []domain.Batch{
			{Metric: datapointdomain.MetricRevenue, Points: []datapointdomain.DataPoint{
				dayPoint(datapointdomain.MetricRevenue, day, 42),
			}},
		},
	}

	_, err := h.svc.SyncIntegration(ctx, row.ID)
	require.NoError(t, err)
	_, err = h.svc.SyncIntegration(ctx, row.ID)
	require.NoError(t, err)

	total, err := h.dataPoints.SumByMetric(ctx, row.OrgID, datapointdomain.MetricRevenue, day.AddDate(0, 0, -30), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 42, total, 0.001)
}

func TestSyncIntegrationFailureMarksErrorAndAlerts(t *testing.T) {
	h := setupSync(t)
	ctx := context.Background()
	row := h.connect(t, snowflake.ID(7003), integrationdomain.PlatformShopify, "shpat_secret")

	h.fake.err = errors.New("shopify: status 401")

	_, err := h.svc.SyncIntegration(ctx, row.ID)
	require.Error(t, err)

	refreshed, err := h.integrations.GetByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, integrationdomain.StatusError, refreshed.Status)
	assert.Contains(t, refreshed.LastError, "401")

	alerts, err := h.alerts.List(ctx, alertdomain.ListRequest{OrgID: row.OrgID})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alertdomain.TypeIntegration, alerts[0].Type)
	assert.Equal(t, "Sync failed: shopify", alerts[0].Title)
}

func TestSyncIntegrationRaisesInventoryAlerts(t *testing.T) {
	h := setupSync(t)
	ctx := context.Background()
	row := h.connect(t, snowflake.ID(7004), integrationdomain.PlatformShopify, "shpat_secret")

	h.fake.result = &domain.Result{
		Stocks: []domain.StockLevel{
			{ProductID: "p1", ProductName: "Widget", Quantity: 0},
			{ProductID: "p2", ProductName: "Gadget", Quantity: 500},
		},
	}

	_, err := h.svc.SyncIntegration(ctx, row.ID)
	require.NoError(t, err)

	alerts, err := h.alerts.List(ctx, alertdomain.ListRequest{OrgID: row.OrgID})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alertdomain.TypeInventory, alerts[0].Type)
	assert.Equal(t, "Out of stock: Widget", alerts[0].Title)
	assert.Equal(t, alertdomain.SeverityCritical, alerts[0].Severity)
}

func TestSyncIntegrationRequiresConnected(t *testing.T) {
	h := setupSync(t)
	ctx := context.Background()

	begun, err := h.integrations.BeginAuthorization(ctx, integrationdomain.BeginAuthorizationRequest{
		OrgID:    snowflake.ID(7005),
		Platform: integrationdomain.PlatformShopify,
		Shop:     "acme-store",
	})
	require.NoError(t, err)

	_, err = h.svc.SyncIntegration(ctx, begun.Integration.ID)
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Zero(t, h.fake.calls)
}

func TestSyncIntegrationUnsupportedPlatform(t *testing.T) {
	h := setupSync(t)
	ctx := context.Background()
	row := h.connect(t, snowflake.ID(7006), integrationdomain.PlatformStripe, "sk_test_123")

	_, err := h.svc.SyncIntegration(ctx, row.ID)
	assert.ErrorIs(t, err, domain.ErrUnsupportedPlatform)
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	h := setupSync(t)
	ctx := context.Background()

	h.connect(t, snowflake.ID(7007), integrationdomain.PlatformShopify, "shpat_secret")
	// Stripe has no syncer in this registry, so it fails and shopify
	// still runs.
	h.connect(t, snowflake.ID(7008), integrationdomain.PlatformStripe, "sk_test_123")

	day := h.clock.Now().UTC().Truncate(24 * time.Hour)
	h.fake.result = &domain.Result{
		Batches: []domain.Batch{
			{Metric: datapointdomain.MetricOrders, Points: []datapointdomain.DataPoint{
				dayPoint(datapointdomain.MetricOrders, day, 5),
			}},
		},
	}

	summary, err := h.svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Integrations)
	assert.Equal(t, 1, summary.Points)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, h.fake.calls)
}
