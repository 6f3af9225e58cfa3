package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	alertdomain "github.com/pulseboard/pulseboard/internal/alert/domain"
	"github.com/pulseboard/pulseboard/internal/alert/rules"
	"github.com/pulseboard/pulseboard/internal/clock"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	syncdomain "github.com/pulseboard/pulseboard/internal/sync/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	Log            *zap.Logger
	Clock          clock.Clock
	SyncSvc        syncdomain.Service
	IntegrationSvc integrationdomain.Service
	AlertSvc       alertdomain.Service
	Config         Config `optional:"true"`
}

type Scheduler struct {
	log            *zap.Logger
	cfg            Config
	clock          clock.Clock
	syncSvc        syncdomain.Service
	integrationSvc integrationdomain.Service
	alertSvc       alertdomain.Service

	// lastRun maps job name to its most recent start, so one ticker can
	// drive jobs with different cadences.
	lastRun map[string]time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.SyncSvc == nil || p.IntegrationSvc == nil || p.AlertSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:            p.Config.withDefaults(),
		clock:          p.Clock,
		syncSvc:        p.SyncSvc,
		integrationSvc: p.IntegrationSvc,
		alertSvc:       p.AlertSvc,
		lastRun:        make(map[string]time.Time),
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	log.Debug("job started")

	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Warn("job timed out",
				zap.Duration("timeout", s.cfg.JobTimeout),
				zap.Error(err),
			)
			return nil
		}
		log.Error("job failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}

	log.Debug("job finished", zap.Duration("elapsed", elapsed))
	return nil
}

// RunOnce runs every enabled job whose interval has elapsed since its
// last start.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name     string
		Interval time.Duration
		Run      func(context.Context) error
	}{
		{"sync_integrations", s.cfg.SyncInterval, s.SyncIntegrationsJob},
		{"integration_health", s.cfg.HealthCheckInterval, s.IntegrationHealthJob},
		{"expire_alerts", s.cfg.AlertExpiryInterval, s.ExpireAlertsJob},
	}

	now := s.clock.Now()
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		if last, ok := s.lastRun[job.Name]; ok && now.Sub(last) < job.Interval {
			continue
		}
		s.lastRun[job.Name] = now
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// SyncIntegrationsJob pulls fresh data for every connected integration.
// Per-integration failures are already folded into the summary, so the
// job itself only fails on infrastructure errors.
func (s *Scheduler) SyncIntegrationsJob(ctx context.Context) error {
	summary, err := s.syncSvc.SyncAll(ctx)
	if err != nil {
		return err
	}
	s.log.Info("sync pass complete",
		zap.Int("integrations", summary.Integrations),
		zap.Int("data_points", summary.Points),
		zap.Int("failures", summary.Failures),
	)
	return nil
}

// IntegrationHealthJob raises alerts for errored and stale integrations.
// Dedup in the alert service keeps repeated passes from stacking
// duplicates.
func (s *Scheduler) IntegrationHealthJob(ctx context.Context) error {
	now := s.clock.Now()

	var integrations []integrationdomain.Integration
	for _, status := range []integrationdomain.Status{
		integrationdomain.StatusConnected,
		integrationdomain.StatusError,
	} {
		batch, err := s.integrationSvc.ListByStatus(ctx, status)
		if err != nil {
			return err
		}
		integrations = append(integrations, batch...)
	}

	var err error
	for _, integration := range integrations {
		for _, draft := range rules.CheckIntegrationHealth(integration, now) {
			if _, _, createErr := s.alertSvc.CreateOrMerge(ctx, integration.OrgID, draft); createErr != nil {
				err = errors.Join(err, createErr)
			}
		}
	}
	return err
}

// ExpireAlertsJob resolves open alerts whose TTL has passed.
func (s *Scheduler) ExpireAlertsJob(ctx context.Context) error {
	expired, err := s.alertSvc.ExpireDue(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		s.log.Info("expired alerts resolved", zap.Int64("count", expired))
	}
	return nil
}
