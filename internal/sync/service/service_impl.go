package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/pulseboard/pulseboard/internal/alert/domain"
	"github.com/pulseboard/pulseboard/internal/alert/rules"
	"github.com/pulseboard/pulseboard/internal/clock"
	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/observability/metrics"
	"github.com/pulseboard/pulseboard/internal/sync/domain"
	"github.com/pulseboard/pulseboard/internal/sync/syncers"
	"github.com/pulseboard/pulseboard/pkg/secrets"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// syncWindowDays is how far back each run re-pulls. Re-syncing the same
// window is idempotent because every metric batch replaces its window.
const syncWindowDays = 30

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Box          *secrets.Box
	Registry     *syncers.Registry
	Integrations integrationdomain.Service
	DataPoints   datapointdomain.Repository
	Alerts       alertdomain.Service
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	box          *secrets.Box
	registry     *syncers.Registry
	integrations integrationdomain.Service
	dataPoints   datapointdomain.Repository
	alerts       alertdomain.Service
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:          p.Log.Named("sync.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		box:          p.Box,
		registry:     p.Registry,
		integrations: p.Integrations,
		dataPoints:   p.DataPoints,
		alerts:       p.Alerts,
		metrics:      p.Metrics,
	}
}

func (s *Service) SyncIntegration(ctx context.Context, integrationID snowflake.ID) (int, error) {
	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return 0, err
	}
	if integration.Status != integrationdomain.StatusConnected {
		return 0, domain.ErrNotConnected
	}
	if integration.EncryptedAccessToken == "" {
		return 0, domain.ErrMissingToken
	}

	syncer, err := s.registry.Syncer(integration.Platform)
	if err != nil {
		return 0, err
	}

	token, err := s.box.Decrypt(integration.EncryptedAccessToken)
	if err != nil {
		s.log.Error("token decrypt failed",
			zap.Int64("integration_id", int64(integration.ID)),
			zap.String("platform", integration.Platform.String()),
		)
		return 0, s.fail(ctx, integration, domain.ErrTokenDecrypt)
	}

	window := s.window()
	result, err := syncer.Sync(ctx, integration, token, window)
	if err != nil {
		s.log.Warn("sync failed",
			zap.Int64("integration_id", int64(integration.ID)),
			zap.String("platform", integration.Platform.String()),
			zap.Error(err),
		)
		return 0, s.fail(ctx, integration, err)
	}

	written := 0
	for _, batch := range result.Batches {
		points := s.claim(integration, batch.Points)
		if err := s.dataPoints.ReplaceWindow(ctx, integration.ID, batch.Metric, window.From, window.To, points); err != nil {
			return written, s.fail(ctx, integration, err)
		}
		written += len(points)
		s.metrics.AddSyncDataPoints(integration.Platform.String(), string(batch.Metric), len(points))
	}

	s.raiseInventoryAlerts(ctx, integration, result.Stocks)

	if err := s.integrations.TouchSync(ctx, integration.ID); err != nil {
		return written, err
	}

	s.metrics.IncSyncRun(integration.Platform.String(), "success")
	s.log.Info("sync completed",
		zap.Int64("integration_id", int64(integration.ID)),
		zap.String("platform", integration.Platform.String()),
		zap.Int("data_points", written),
	)
	return written, nil
}

func (s *Service) SyncAll(ctx context.Context) (domain.RunSummary, error) {
	connected, err := s.integrations.ListConnected(ctx)
	if err != nil {
		return domain.RunSummary{}, err
	}

	summary := domain.RunSummary{Integrations: len(connected)}
	for _, integration := range connected {
		written, err := s.SyncIntegration(ctx, integration.ID)
		summary.Points += written
		if err != nil {
			summary.Failures++
			continue
		}
	}
	return summary, nil
}

func (s *Service) window() domain.Window {
	today := s.clock.Now().UTC().Truncate(24 * time.Hour)
	return domain.Window{
		From: today.AddDate(0, 0, -syncWindowDays),
		To:   today.AddDate(0, 0, 1),
	}
}

// claim stamps ownership and identity onto syncer-produced points.
func (s *Service) claim(integration *integrationdomain.Integration, points []datapointdomain.DataPoint) []datapointdomain.DataPoint {
	now := s.clock.Now()
	for i := range points {
		points[i].ID = s.genID.Generate()
		points[i].OrgID = integration.OrgID
		points[i].IntegrationID = integration.ID
		points[i].CreatedAt = now
		if points[i].Metadata == nil {
			points[i].Metadata = datatypes.JSONMap{}
		}
	}
	return points
}

// fail records the error on the integration and raises an alert. The
// original sync error is returned so callers see the cause.
func (s *Service) fail(ctx context.Context, integration *integrationdomain.Integration, cause error) error {
	s.metrics.IncSyncRun(integration.Platform.String(), "failure")
	s.metrics.IncSyncFailure(integration.Platform.String())

	if err := s.integrations.MarkError(ctx, integration.ID, cause.Error()); err != nil {
		s.log.Error("mark error failed", zap.Int64("integration_id", int64(integration.ID)), zap.Error(err))
	}

	draft := rules.SyncFailure(*integration, cause.Error())
	if _, _, err := s.alerts.CreateOrMerge(ctx, integration.OrgID, draft); err != nil {
		s.log.Error("sync failure alert", zap.Int64("integration_id", int64(integration.ID)), zap.Error(err))
	}
	return cause
}

func (s *Service) raiseInventoryAlerts(ctx context.Context, integration *integrationdomain.Integration, stocks []domain.StockLevel) {
	if len(stocks) == 0 {
		return
	}

	products := make([]rules.ProductStock, 0, len(stocks))
	for _, stock := range stocks {
		products = append(products, rules.ProductStock{
			ProductID:   stock.ProductID,
			ProductName: stock.ProductName,
			Quantity:    stock.Quantity,
		})
	}

	for _, draft := range rules.CheckInventory(products) {
		if _, _, err := s.alerts.CreateOrMerge(ctx, integration.OrgID, draft); err != nil {
			s.log.Error("inventory alert", zap.Int64("integration_id", int64(integration.ID)), zap.Error(err))
		}
	}
}
