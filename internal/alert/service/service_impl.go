package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pulseboard/pulseboard/internal/alert/domain"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("alert.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) CreateOrMerge(ctx context.Context, orgID snowflake.ID, draft domain.Draft) (*domain.Alert, bool, error) {
	if orgID == 0 {
		return nil, false, domain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	existing, err := s.repo.FindOpenDuplicate(ctx, orgID, draft.Type, draft.Title, now.Add(-domain.DedupWindow))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	if existing != nil {
		if err := s.repo.Refresh(ctx, existing.ID, draft.Description, draft.Metadata, now); err != nil {
			return nil, false, err
		}
		s.metrics.IncAlertMerged(string(draft.Type))
		refreshed, err := s.repo.FindByID(ctx, orgID, existing.ID)
		if err != nil {
			return nil, false, err
		}
		return refreshed, true, nil
	}

	alert := &domain.Alert{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Type:        draft.Type,
		Severity:    draft.Severity,
		Status:      domain.StatusActive,
		Title:       draft.Title,
		Description: draft.Description,
		Metadata:    datatypes.JSONMap(draft.Metadata),
		ActionURL:   draft.ActionURL,
		ActionLabel: draft.ActionLabel,
		Occurrences: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if alert.Metadata == nil {
		alert.Metadata = datatypes.JSONMap{}
	}
	if draft.TTL > 0 {
		expires := now.Add(draft.TTL)
		alert.ExpiresAt = &expires
	}

	if err := s.repo.Insert(ctx, alert); err != nil {
		return nil, false, err
	}

	s.metrics.IncAlertCreated(string(draft.Type), string(draft.Severity))
	s.log.Info("alert created",
		zap.String("type", string(draft.Type)),
		zap.String("severity", string(draft.Severity)),
		zap.Int64("organization_id", int64(orgID)),
	)
	return alert, false, nil
}

// List sweeps expired alerts for the organization before reading, so
// callers never see an open alert past its expiry.
func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Alert, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	if _, err := s.repo.ExpireDue(ctx, req.OrgID, s.clock.Now()); err != nil {
		return nil, err
	}

	return s.repo.List(ctx, req)
}

func (s *Service) ApplyAction(ctx context.Context, req domain.ApplyActionRequest) (*domain.Alert, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	action := domain.Action(strings.ToLower(strings.TrimSpace(string(req.Action))))
	switch action {
	case domain.ActionAcknowledge, domain.ActionResolve, domain.ActionDismiss:
	default:
		return nil, domain.ErrInvalidAction
	}

	alert, err := s.repo.FindByID(ctx, req.OrgID, req.AlertID)
	if err != nil {
		return nil, err
	}

	if alert.Status.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	fields := map[string]any{"updated_at": now}
	switch action {
	case domain.ActionAcknowledge:
		if alert.Status != domain.StatusActive {
			return nil, domain.ErrInvalidTransition
		}
		fields["status"] = domain.StatusAcknowledged
		fields["acknowledged_at"] = now
		fields["acknowledged_by"] = req.UserID
	case domain.ActionResolve:
		fields["status"] = domain.StatusResolved
		fields["resolved_at"] = now
		fields["resolved_by"] = req.UserID
	case domain.ActionDismiss:
		fields["status"] = domain.StatusDismissed
		fields["dismissed_at"] = now
		fields["dismissed_by"] = req.UserID
	}

	if err := s.repo.UpdateStatus(ctx, alert.ID, fields); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, req.OrgID, req.AlertID)
}

func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	return s.repo.ExpireDueAll(ctx, s.clock.Now())
}
