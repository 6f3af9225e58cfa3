package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/connect/adapters"
	"github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/observability/metrics"
	orgdomain "github.com/pulseboard/pulseboard/internal/organization/domain"
	"github.com/pulseboard/pulseboard/pkg/secrets"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Config        config.Config
	Registry      *adapters.Registry
	Integrations  integrationdomain.Service
	Organizations orgdomain.Service
	Box           *secrets.Box
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	cfg           config.Config
	registry      *adapters.Registry
	integrations  integrationdomain.Service
	organizations orgdomain.Service
	box           *secrets.Box
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("connect.service"),
		cfg:           p.Config,
		registry:      p.Registry,
		integrations:  p.Integrations,
		organizations: p.Organizations,
		box:           p.Box,
		metrics:       p.Metrics,
	}
}

// Authorize starts the redirect flow and returns the provider consent
// URL. The caller must already be a member of the organization.
func (s *Service) Authorize(ctx context.Context, params domain.AuthorizeParams) (string, error) {
	adapter, err := s.registry.Adapter(params.Platform)
	if err != nil {
		return "", err
	}
	if !adapter.UsesRedirectFlow() {
		return "", domain.ErrUnsupportedFlow
	}

	member, err := s.organizations.IsMember(ctx, params.OrgID, params.UserID)
	if err != nil {
		return "", err
	}
	if !member {
		return "", domain.ErrNotAMember
	}

	begin, err := s.integrations.BeginAuthorization(ctx, integrationdomain.BeginAuthorizationRequest{
		OrgID:    params.OrgID,
		Platform: params.Platform,
		Shop:     params.Shop,
		UserID:   params.UserID,
	})
	if err != nil {
		return "", err
	}

	return adapter.BuildAuthorizeURL(domain.AuthorizeRequest{
		Shop:        begin.Shop,
		State:       begin.State,
		RedirectURI: s.callbackURL(params.Platform),
	})
}

// Callback completes the redirect flow. Checks run in a fixed order and
// the first failure wins: provider error, required params, signature,
// state consume, token exchange. The signature check runs before any
// state is read so a forged query cannot burn a pending handshake.
func (s *Service) Callback(ctx context.Context, platform integrationdomain.Platform, query url.Values) (*domain.CallbackResult, error) {
	adapter, err := s.registry.Adapter(platform)
	if err != nil {
		s.countCallback(platform, "unsupported_platform")
		return nil, err
	}

	if providerErr := strings.TrimSpace(query.Get("error")); providerErr != "" {
		s.countCallback(platform, "provider_denied")
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderDenied, providerErr)
	}

	code := strings.TrimSpace(query.Get("code"))
	state := strings.TrimSpace(query.Get("state"))
	shop := strings.TrimSpace(query.Get("shop"))
	if code == "" || state == "" {
		s.countCallback(platform, "missing_params")
		return nil, domain.ErrMissingParams
	}
	if platform == integrationdomain.PlatformShopify && shop == "" {
		s.countCallback(platform, "missing_params")
		return nil, domain.ErrMissingParams
	}

	if err := adapter.VerifyCallbackSignature(query); err != nil {
		s.countCallback(platform, "invalid_signature")
		return nil, err
	}

	session, err := s.integrations.ConsumePending(ctx, platform, state, shop)
	if err != nil {
		s.countCallback(platform, "state_rejected")
		return nil, err
	}

	token, err := adapter.ExchangeToken(ctx, code, session.Shop)
	if err != nil {
		// Provider response details stay in the server log.
		s.log.Warn("token exchange failed",
			zap.String("platform", platform.String()),
			zap.Int64("organization_id", int64(session.OrgID)),
			zap.Error(err),
		)
		s.countCallback(platform, "token_exchange_failed")
		return nil, domain.ErrTokenExchange
	}

	sealed, err := s.box.Encrypt(token.AccessToken)
	if err != nil {
		s.countCallback(platform, "encrypt_failed")
		return nil, err
	}

	if err := s.integrations.MarkConnected(ctx, session.IntegrationID, sealed, token.Scopes, session.Shop); err != nil {
		s.countCallback(platform, "persist_failed")
		return nil, err
	}

	// Token is durable past this point. Everything below is advisory.
	s.enrichConnection(ctx, adapter, session, token)

	s.countCallback(platform, "success")
	s.log.Info("integration connected",
		zap.String("platform", platform.String()),
		zap.Int64("organization_id", int64(session.OrgID)),
		zap.String("shop", session.Shop),
	)

	return &domain.CallbackResult{
		Platform: platform,
		Shop:     session.Shop,
		OrgID:    session.OrgID,
	}, nil
}

// ConnectWithKey connects a platform that authenticates with
// merchant-supplied API credentials instead of a browser flow.
func (s *Service) ConnectWithKey(ctx context.Context, params domain.ConnectWithKeyParams) (*domain.CallbackResult, error) {
	adapter, err := s.registry.Adapter(params.Platform)
	if err != nil {
		return nil, err
	}
	if adapter.UsesRedirectFlow() {
		return nil, domain.ErrUnsupportedFlow
	}

	member, err := s.organizations.IsMember(ctx, params.OrgID, params.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domain.ErrNotAMember
	}

	token, err := adapter.ValidateCredentials(ctx, params.Credentials)
	if err != nil {
		return nil, err
	}

	begin, err := s.integrations.BeginAuthorization(ctx, integrationdomain.BeginAuthorizationRequest{
		OrgID:    params.OrgID,
		Platform: params.Platform,
		UserID:   params.UserID,
	})
	if err != nil {
		return nil, err
	}

	sealed, err := s.box.Encrypt(token.AccessToken)
	if err != nil {
		return nil, err
	}

	if err := s.integrations.MarkConnected(ctx, begin.Integration.ID, sealed, token.Scopes, ""); err != nil {
		return nil, err
	}
	if len(token.Metadata) > 0 {
		if err := s.integrations.UpdateMetadata(ctx, begin.Integration.ID, token.Metadata); err != nil {
			s.log.Warn("metadata update failed",
				zap.String("platform", params.Platform.String()),
				zap.Error(err),
			)
		}
	}

	s.log.Info("integration connected",
		zap.String("platform", params.Platform.String()),
		zap.Int64("organization_id", int64(params.OrgID)),
	)

	return &domain.CallbackResult{
		Platform: params.Platform,
		OrgID:    params.OrgID,
	}, nil
}

func (s *Service) enrichConnection(ctx context.Context, adapter domain.Adapter, session *integrationdomain.PendingSession, token *domain.TokenResult) {
	metadata := map[string]any{}
	for key, value := range token.Metadata {
		metadata[key] = value
	}

	info, err := adapter.FetchAccountInfo(ctx, token.AccessToken, session.Shop)
	if err != nil {
		s.log.Warn("account info fetch failed",
			zap.String("platform", session.Platform.String()),
			zap.Error(err),
		)
	} else if info != nil {
		metadata["account_name"] = info.Name
		for key, value := range info.Metadata {
			metadata[key] = value
		}
	}

	if len(metadata) > 0 {
		if err := s.integrations.UpdateMetadata(ctx, session.IntegrationID, metadata); err != nil {
			s.log.Warn("metadata update failed",
				zap.String("platform", session.Platform.String()),
				zap.Error(err),
			)
		}
	}

	if err := adapter.RegisterWebhook(ctx, token.AccessToken, session.Shop); err != nil {
		s.log.Warn("webhook registration failed",
			zap.String("platform", session.Platform.String()),
			zap.String("shop", session.Shop),
			zap.Error(err),
		)
	}
}

func (s *Service) callbackURL(platform integrationdomain.Platform) string {
	return fmt.Sprintf("%s/connect/%s/callback",
		strings.TrimRight(s.cfg.AppBaseURL, "/"),
		strings.ToLower(platform.String()),
	)
}

func (s *Service) countCallback(platform integrationdomain.Platform, result string) {
	s.metrics.IncOAuthCallback(strings.ToLower(platform.String()), result)
}
