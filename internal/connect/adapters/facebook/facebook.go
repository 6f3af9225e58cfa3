// Package facebook implements the Facebook Ads OAuth connect flow.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/pkg/secrets"
)

const graphVersion = "v18.0"

type Config struct {
	AppID     string
	AppSecret string
	Scopes    string
}

type Adapter struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformFacebookAds
}

func (a *Adapter) UsesRedirectFlow() bool { return true }

func (a *Adapter) BuildAuthorizeURL(req domain.AuthorizeRequest) (string, error) {
	if a.cfg.AppID == "" || a.cfg.AppSecret == "" {
		return "", domain.ErrNotConfigured
	}

	query := url.Values{}
	query.Set("client_id", a.cfg.AppID)
	query.Set("redirect_uri", req.RedirectURI)
	query.Set("state", req.State)
	query.Set("scope", a.cfg.Scopes)
	query.Set("response_type", "code")

	return fmt.Sprintf("https://www.facebook.com/%s/dialog/oauth?%s", graphVersion, query.Encode()), nil
}

// Facebook does not sign the callback query; the state check is the
// only integrity control on this leg.
func (a *Adapter) VerifyCallbackSignature(query url.Values) error {
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Adapter) ExchangeToken(ctx context.Context, code, shop string) (*domain.TokenResult, error) {
	query := url.Values{}
	query.Set("client_id", a.cfg.AppID)
	query.Set("client_secret", a.cfg.AppSecret)
	query.Set("code", code)

	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/oauth/access_token?%s", graphVersion, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrTokenExchange, resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", domain.ErrTokenExchange)
	}

	return &domain.TokenResult{
		AccessToken: token.AccessToken,
		Metadata: map[string]any{
			"token_type": token.TokenType,
			"expires_in": token.ExpiresIn,
		},
	}, nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context, credentials map[string]string) (*domain.TokenResult, error) {
	return nil, domain.ErrUnsupportedFlow
}

type meResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FetchAccountInfo calls /me with an appsecret_proof so the token alone
// is not enough to impersonate the app.
func (a *Adapter) FetchAccountInfo(ctx context.Context, token, shop string) (*domain.AccountInfo, error) {
	query := url.Values{}
	query.Set("fields", "id,name")
	query.Set("access_token", token)
	query.Set("appsecret_proof", secrets.SignHMAC([]byte(token), a.cfg.AppSecret))

	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/me?%s", graphVersion, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("account lookup failed: status %d", resp.StatusCode)
	}

	var me meResponse
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, err
	}

	return &domain.AccountInfo{
		Name: me.Name,
		Metadata: map[string]any{
			"account_id": me.ID,
		},
	}, nil
}

func (a *Adapter) RegisterWebhook(ctx context.Context, token, shop string) error {
	// Ads insights are pulled, not pushed.
	return nil
}
