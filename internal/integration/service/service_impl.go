package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/pkg/secrets"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// stateTTL bounds how long an issued OAuth state stays redeemable.
const stateTTL = 5 * time.Minute

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("integration.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) BeginAuthorization(ctx context.Context, req domain.BeginAuthorizationRequest) (*domain.BeginAuthorizationResult, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if _, ok := domain.ParsePlatform(string(req.Platform)); !ok {
		return nil, domain.ErrInvalidPlatform
	}

	shop := ""
	if strings.TrimSpace(req.Shop) != "" {
		sanitized, err := domain.SanitizeShopDomain(req.Shop)
		if err != nil {
			return nil, err
		}
		shop = sanitized
	}

	row, err := s.repo.FindByOrgAndPlatform(ctx, req.OrgID, req.Platform)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		now := s.clock.Now()
		row = &domain.Integration{
			ID:        s.genID.Generate(),
			OrgID:     req.OrgID,
			Platform:  req.Platform,
			Status:    domain.StatusDisconnected,
			Metadata:  datatypes.JSONMap{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Insert(ctx, row); err != nil {
			return nil, err
		}
	}

	state, err := secrets.RandomToken(secrets.DefaultTokenBytes)
	if err != nil {
		return nil, err
	}
	nonce, err := secrets.RandomToken(secrets.DefaultTokenBytes)
	if err != nil {
		return nil, err
	}

	// Overwrites any earlier unredeemed handshake for the slot.
	if err := s.repo.SetPending(ctx, row.ID, state, nonce, shop, req.UserID, s.clock.Now()); err != nil {
		return nil, err
	}

	s.log.Info("authorization started",
		zap.String("platform", req.Platform.String()),
		zap.Int64("organization_id", int64(req.OrgID)),
		zap.String("shop", shop),
	)

	return &domain.BeginAuthorizationResult{
		Integration: row,
		State:       state,
		Nonce:       nonce,
		Shop:        shop,
	}, nil
}

func (s *Service) ConsumePending(ctx context.Context, platform domain.Platform, state, shop string) (*domain.PendingSession, error) {
	row, err := s.repo.ConsumePendingByState(ctx, platform, strings.TrimSpace(state))
	if err != nil {
		return nil, err
	}

	pendingShop := ""
	if row.PendingShop != nil {
		pendingShop = *row.PendingShop
	}

	if shop != "" || pendingShop != "" {
		sanitized, err := domain.SanitizeShopDomain(shop)
		if err != nil {
			return nil, domain.ErrShopMismatch
		}
		if sanitized != pendingShop {
			return nil, domain.ErrShopMismatch
		}
	}

	if row.PendingIssuedAt == nil || s.clock.Now().Sub(*row.PendingIssuedAt) > stateTTL {
		return nil, domain.ErrStateExpired
	}

	session := &domain.PendingSession{
		IntegrationID: row.ID,
		OrgID:         row.OrgID,
		Platform:      row.Platform,
		Shop:          pendingShop,
		IssuedAt:      *row.PendingIssuedAt,
	}
	if row.PendingUserID != nil {
		session.UserID = *row.PendingUserID
	}
	if row.PendingNonce != nil {
		session.Nonce = *row.PendingNonce
	}
	return session, nil
}

func (s *Service) MarkConnected(ctx context.Context, id snowflake.ID, encryptedToken, scopes, shop string) error {
	if strings.TrimSpace(encryptedToken) == "" {
		return domain.ErrMissingToken
	}
	return s.repo.MarkConnected(ctx, id, encryptedToken, scopes, shop, s.clock.Now())
}

func (s *Service) MarkError(ctx context.Context, id snowflake.ID, message string) error {
	return s.repo.MarkError(ctx, id, message, s.clock.Now())
}

func (s *Service) Disconnect(ctx context.Context, orgID snowflake.ID, platform domain.Platform) error {
	row, err := s.repo.FindByOrgAndPlatform(ctx, orgID, platform)
	if err != nil {
		return err
	}
	if err := s.repo.Disconnect(ctx, row.ID, s.clock.Now()); err != nil {
		return err
	}
	s.log.Info("integration disconnected",
		zap.String("platform", platform.String()),
		zap.Int64("organization_id", int64(orgID)),
	)
	return nil
}

func (s *Service) TouchSync(ctx context.Context, id snowflake.ID) error {
	return s.repo.TouchSync(ctx, id, s.clock.Now())
}

func (s *Service) UpdateMetadata(ctx context.Context, id snowflake.ID, metadata map[string]any) error {
	return s.repo.UpdateMetadata(ctx, id, metadata, s.clock.Now())
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Integration, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) FindByOrgAndPlatform(ctx context.Context, orgID snowflake.ID, platform domain.Platform) (*domain.Integration, error) {
	return s.repo.FindByOrgAndPlatform(ctx, orgID, platform)
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]domain.Integration, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, orgID)
}

func (s *Service) ListConnected(ctx context.Context) ([]domain.Integration, error) {
	return s.repo.ListByStatus(ctx, domain.StatusConnected)
}

func (s *Service) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Integration, error) {
	return s.repo.ListByStatus(ctx, status)
}
