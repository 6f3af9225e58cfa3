// Package stripe implements key-based Stripe connect: the merchant
// supplies a restricted API key which is validated against the account
// endpoint before storage.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
)

type Config struct {
	APIBaseURL string
}

type Adapter struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.stripe.com"
	}
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformStripe
}

func (a *Adapter) UsesRedirectFlow() bool { return false }

func (a *Adapter) BuildAuthorizeURL(req domain.AuthorizeRequest) (string, error) {
	return "", domain.ErrUnsupportedFlow
}

func (a *Adapter) VerifyCallbackSignature(query url.Values) error {
	return domain.ErrUnsupportedFlow
}

func (a *Adapter) ExchangeToken(ctx context.Context, code, shop string) (*domain.TokenResult, error) {
	return nil, domain.ErrUnsupportedFlow
}

type accountResponse struct {
	ID              string `json:"id"`
	BusinessProfile struct {
		Name string `json:"name"`
	} `json:"business_profile"`
	Country         string `json:"country"`
	DefaultCurrency string `json:"default_currency"`
}

func (a *Adapter) ValidateCredentials(ctx context.Context, credentials map[string]string) (*domain.TokenResult, error) {
	key := strings.TrimSpace(credentials["api_key"])
	if key == "" || !strings.HasPrefix(key, "sk_") && !strings.HasPrefix(key, "rk_") {
		return nil, domain.ErrInvalidCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(a.cfg.APIBaseURL, "/")+"/v1/account", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrInvalidCredentials, resp.StatusCode)
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}

	return &domain.TokenResult{
		AccessToken: key,
		Metadata: map[string]any{
			"account_id":       account.ID,
			"account_name":     account.BusinessProfile.Name,
			"country":          account.Country,
			"default_currency": account.DefaultCurrency,
		},
	}, nil
}

func (a *Adapter) FetchAccountInfo(ctx context.Context, token, shop string) (*domain.AccountInfo, error) {
	result, err := a.ValidateCredentials(ctx, map[string]string{"api_key": token})
	if err != nil {
		return nil, err
	}
	name, _ := result.Metadata["account_name"].(string)
	return &domain.AccountInfo{Name: name, Metadata: result.Metadata}, nil
}

func (a *Adapter) RegisterWebhook(ctx context.Context, token, shop string) error {
	// Charges are pulled on the sync schedule.
	return nil
}
