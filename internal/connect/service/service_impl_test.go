package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/connect/adapters"
	"github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	integrationrepo "github.com/pulseboard/pulseboard/internal/integration/repository"
	integrationservice "github.com/pulseboard/pulseboard/internal/integration/service"
	orgdomain "github.com/pulseboard/pulseboard/internal/organization/domain"
	"github.com/pulseboard/pulseboard/pkg/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const fakeSigningSecret = "adapter-signing-secret"

// fakeAdapter mimics the shopify-style redirect flow: the callback
// query is HMAC-signed and the code exchanges for a scripted token.
type fakeAdapter struct {
	platform        integrationdomain.Platform
	redirect        bool
	exchangeErr     error
	webhookErr      error
	accountInfoErr  error
	credentials     *domain.TokenResult
	credentialsErr  error
	webhookCalls    int
	exchangeCalls   int
	lastExchangedTo string
}

func (f *fakeAdapter) Platform() integrationdomain.Platform { return f.platform }
func (f *fakeAdapter) UsesRedirectFlow() bool               { return f.redirect }

func (f *fakeAdapter) BuildAuthorizeURL(req domain.AuthorizeRequest) (string, error) {
	if !f.redirect {
		return "", domain.ErrUnsupportedFlow
	}
	return "https://provider.example/authorize?state=" + req.State, nil
}

func (f *fakeAdapter) VerifyCallbackSignature(query url.Values) error {
	signature := query.Get("hmac")
	message := "code=" + query.Get("code") + "&shop=" + query.Get("shop") + "&state=" + query.Get("state")
	if !secrets.VerifyHMAC([]byte(message), signature, fakeSigningSecret) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (f *fakeAdapter) ExchangeToken(ctx context.Context, code, shop string) (*domain.TokenResult, error) {
	f.exchangeCalls++
	f.lastExchangedTo = shop
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &domain.TokenResult{AccessToken: "shpat_" + code, Scopes: "read_orders"}, nil
}

func (f *fakeAdapter) ValidateCredentials(ctx context.Context, credentials map[string]string) (*domain.TokenResult, error) {
	if f.credentialsErr != nil {
		return nil, f.credentialsErr
	}
	if f.credentials != nil {
		return f.credentials, nil
	}
	return nil, domain.ErrUnsupportedFlow
}

func (f *fakeAdapter) FetchAccountInfo(ctx context.Context, token, shop string) (*domain.AccountInfo, error) {
	if f.accountInfoErr != nil {
		return nil, f.accountInfoErr
	}
	return &domain.AccountInfo{Name: "Demo Store"}, nil
}

func (f *fakeAdapter) RegisterWebhook(ctx context.Context, token, shop string) error {
	f.webhookCalls++
	return f.webhookErr
}

type orgStub struct {
	member bool
}

func (o *orgStub) Create(ctx context.Context, req orgdomain.CreateOrganizationRequest) (*orgdomain.Organization, error) {
	return nil, nil
}
func (o *orgStub) GetByID(ctx context.Context, id snowflake.ID) (*orgdomain.Organization, error) {
	return nil, nil
}
func (o *orgStub) IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	return o.member, nil
}
func (o *orgStub) ListForUser(ctx context.Context, userID snowflake.ID) ([]orgdomain.Organization, error) {
	return nil, nil
}

func signedQuery(code, shop, state string) url.Values {
	query := url.Values{}
	query.Set("code", code)
	query.Set("shop", shop)
	query.Set("state", state)
	message := "code=" + code + "&shop=" + shop + "&state=" + state
	query.Set("hmac", secrets.SignHMAC([]byte(message), fakeSigningSecret))
	return query
}

func setupConnect(t *testing.T, adapter domain.Adapter) (domain.Service, integrationdomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&integrationdomain.Integration{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))

	integrations := integrationservice.New(integrationservice.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  integrationrepo.Provide(db),
	})

	box, err := secrets.NewBox("unit-test-encryption-secret")
	require.NoError(t, err)

	svc := New(Params{
		Log:           zap.NewNop(),
		Config:        config.Config{AppBaseURL: "https://app.example.com"},
		Registry:      adapters.NewRegistry(adapter),
		Integrations:  integrations,
		Organizations: &orgStub{member: true},
		Box:           box,
	})
	return svc, integrations, db
}

func TestAuthorizeReturnsProviderURL(t *testing.T) {
	adapter := &fakeAdapter{platform: integrationdomain.PlatformShopify, redirect: true}
	svc, integrations, _ := setupConnect(t, adapter)
	ctx := context.Background()

	redirect, err := svc.Authorize(ctx, domain.AuthorizeParams{
		OrgID:    snowflake.ID(2001),
		UserID:   snowflake.ID(9),
		Platform: integrationdomain.PlatformShopify,
		Shop:     "demo-store.myshopify.com",
	})
	require.NoError(t, err)
	assert.Contains(t, redirect, "https://provider.example/authorize?state=")

	row, err := integrations.FindByOrgAndPlatform(ctx, snowflake.ID(2001), integrationdomain.PlatformShopify)
	require.NoError(t, err)
	require.NotNil(t, row.PendingState)
	assert.Len(t, *row.PendingState, 64)
}

func TestAuthorizeRejectsNonMembers(t *testing.T) {
	adapter := &fakeAdapter{platform: integrationdomain.PlatformShopify, redirect: true}
	svc, _, _ := setupConnect(t, adapter)

	connectSvc := svc.(*Service)
	connectSvc.organizations = &orgStub{member: false}

	_, err := svc.Authorize(context.Background(), domain.AuthorizeParams{
		OrgID:    snowflake.ID(2002),
		UserID:   snowflake.ID(9),
		Platform: integrationdomain.PlatformShopify,
		Shop:     "demo-store",
	})
	assert.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestCallbackHappyPath(t *testing.T) {
	adapter := &fakeAdapter{platform: integrationdomain.PlatformShopify, redirect: true}
	svc, integrations, _ := setupConnect(t, adapter)
	ctx := context.Background()
	orgID := snowflake.ID(2003)

	_, err := svc.Authorize(ctx, domain.AuthorizeParams{
		OrgID: orgID, UserID: snowflake.ID(9),
		Platform: integrationdomain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	row, err := integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformShopify)
	require.NoError(t, err)
	state := *row.PendingState

	result, err := svc.Callback(ctx, integrationdomain.PlatformShopify, signedQuery("authcode", "demo-store", state))
	require.NoError(t, err)
	assert.Equal(t, "demo-store", result.Shop)
	assert.Equal(t, orgID, result.OrgID)

	row, err = integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, integrationdomain.StatusConnected, row.Status)
	assert.NotEmpty(t, row.EncryptedAccessToken)
	assert.NotEqual(t, "shpat_authcode", row.EncryptedAccessToken)
	assert.Equal(t, 1, adapter.webhookCalls)
}

func TestCallbackProviderDenialWinsOverEverything(t *testing.T) {
	adapter := &fakeAdapter{platform: integrationdomain.PlatformShopify, redirect: true}
	svc, _, _ := setupConnect(t, adapter)

	query := url.Values{}
	query.Set("error", "access_denied")
	query.Set("hmac", "garbage")

	_, err := svc.Callback(context.Background(), integrationdomain.PlatformShopify, query)
	assert.ErrorIs(t, err, domain.ErrProviderDenied)
	assert.Zero(t, adapter.exchangeCalls)
}

func TestCallbackMissingParams(t *testing.T) {
	adapter := &fakeAdapter{platform: integrationdomain.PlatformShopify, redirect: true}
	svc, _, _ := setupConnect(t, adapter)

	query := url.Values{}
	query.Set("code", "authcode")

	_, err := svc.Callback(context.Background(), integrationdomain.PlatformShopify, query)
	assert.ErrorIs(t, err, domain.ErrMissingParams)
}

func TestCallbackBadSignatureDoesNotBurnState(t *testing.T) {
	adapter := &fakeAdapter{platform: integrationdomain.PlatformShopify, redirect: true}
	svc, integrations, _ := setupConnect(t, adapter)
	ctx := context.Background()
	orgID := snowflake.ID(2004)

	_, err := svc.Authorize(ctx, domain.AuthorizeParams{
		OrgID: orgID, UserID: snowflake.ID(9),
		Platform: integrationdomain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	row, err := integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformShopify)
	require.NoError(t, err)
	state := *row.PendingState

	forged := signedQuery("authcode", "demo-store", state)
	forged.Set("hmac", "0000000000000000000000000000000000000000000000000000000000000000")

	_, err = svc.Callback(ctx, integrationdomain.PlatformShopify, forged)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Zero(t, adapter.exchangeCalls)

	// A properly signed retry with the same state still succeeds.
	_, err = svc.Callback(ctx, integrationdomain.PlatformShopify, signedQuery("authcode", "demo-store", state))
	require.NoError(t, err)
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	adapter := &fakeAdapter{platform: integrationdomain.PlatformShopify, redirect: true}
	svc, integrations, _ := setupConnect(t, adapter)
	ctx := context.Background()
	orgID := snowflake.ID(2005)

	_, err := svc.Authorize(ctx, domain.AuthorizeParams{
		OrgID: orgID, UserID: snowflake.ID(9),
		Platform: integrationdomain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	row, err := integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformShopify)
	require.NoError(t, err)
	state := *row.PendingState

	_, err = svc.Callback(ctx, integrationdomain.PlatformShopify, signedQuery("authcode", "demo-store", state))
	require.NoError(t, err)

	_, err = svc.Callback(ctx, integrationdomain.PlatformShopify, signedQuery("authcode", "demo-store", state))
	assert.ErrorIs(t, err, integrationdomain.ErrInvalidState)
}

func TestCallbackTokenExchangeFailure(t *testing.T) {
	adapter := &fakeAdapter{
		platform:    integrationdomain.PlatformShopify,
		redirect:    true,
		exchangeErr: errors.New("provider said no"),
	}
	svc, integrations, _ := setupConnect(t, adapter)
	ctx := context.Background()
	orgID := snowflake.ID(2006)

	_, err := svc.Authorize(ctx, domain.AuthorizeParams{
		OrgID: orgID, UserID: snowflake.ID(9),
		Platform: integrationdomain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	row, err := integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformShopify)
	require.NoError(t, err)
	state := *row.PendingState

	_, err = svc.Callback(ctx, integrationdomain.PlatformShopify, signedQuery("authcode", "demo-store", state))
	assert.ErrorIs(t, err, domain.ErrTokenExchange)

	row, err = integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, integrationdomain.StatusDisconnected, row.Status)
	assert.Empty(t, row.EncryptedAccessToken)
}

func TestCallbackWebhookFailureDoesNotFailFlow(t *testing.T) {
	adapter := &fakeAdapter{
		platform:   integrationdomain.PlatformShopify,
		redirect:   true,
		webhookErr: errors.New("webhook registration refused"),
	}
	svc, integrations, _ := setupConnect(t, adapter)
	ctx := context.Background()
	orgID := snowflake.ID(2007)

	_, err := svc.Authorize(ctx, domain.AuthorizeParams{
		OrgID: orgID, UserID: snowflake.ID(9),
		Platform: integrationdomain.PlatformShopify, Shop: "demo-store",
	})
	require.NoError(t, err)

	row, err := integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformShopify)
	require.NoError(t, err)
	state := *row.PendingState

	_, err = svc.Callback(ctx, integrationdomain.PlatformShopify, signedQuery("authcode", "demo-store", state))
	require.NoError(t, err)

	row, err = integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, integrationdomain.StatusConnected, row.Status)
	assert.NotEmpty(t, row.EncryptedAccessToken)
}

func TestConnectWithKey(t *testing.T) {
	adapter := &fakeAdapter{
		platform: integrationdomain.PlatformStripe,
		redirect: false,
		credentials: &domain.TokenResult{
			AccessToken: "rk_test_abc",
			Metadata:    map[string]any{"account_id": "acct_1"},
		},
	}
	svc, integrations, _ := setupConnect(t, adapter)
	ctx := context.Background()
	orgID := snowflake.ID(2008)

	result, err := svc.ConnectWithKey(ctx, domain.ConnectWithKeyParams{
		OrgID:       orgID,
		UserID:      snowflake.ID(9),
		Platform:    integrationdomain.PlatformStripe,
		Credentials: map[string]string{"api_key": "rk_test_abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, orgID, result.OrgID)

	row, err := integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformStripe)
	require.NoError(t, err)
	assert.Equal(t, integrationdomain.StatusConnected, row.Status)
	assert.NotEmpty(t, row.EncryptedAccessToken)
	assert.NotEqual(t, "rk_test_abc", row.EncryptedAccessToken)
}

func TestConnectWithKeyInvalidCredentials(t *testing.T) {
	adapter := &fakeAdapter{
		platform:       integrationdomain.PlatformStripe,
		redirect:       false,
		credentialsErr: domain.ErrInvalidCredentials,
	}
	svc, integrations, _ := setupConnect(t, adapter)
	ctx := context.Background()
	orgID := snowflake.ID(2009)

	_, err := svc.ConnectWithKey(ctx, domain.ConnectWithKeyParams{
		OrgID:       orgID,
		UserID:      snowflake.ID(9),
		Platform:    integrationdomain.PlatformStripe,
		Credentials: map[string]string{"api_key": "bogus"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = integrations.FindByOrgAndPlatform(ctx, orgID, integrationdomain.PlatformStripe)
	assert.ErrorIs(t, err, integrationdomain.ErrNotFound)
}
