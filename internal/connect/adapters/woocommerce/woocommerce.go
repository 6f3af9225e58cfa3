// Package woocommerce implements key-based WooCommerce connect using
// REST consumer key/secret pairs.
package woocommerce

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
	APIPathPrefix string
}

type Adapter struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(cfg.APIPathPrefix) == "" {
		cfg.APIPathPrefix = "/wp-json/wc/v3"
	}
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformWooCommerce
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

// storedCredential is the JSON blob kept (encrypted) as the token.
type storedCredential struct {
	StoreURL       string `json:"store_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

func (a *Adapter) ValidateCredentials(ctx context.Context, credentials map[string]string) (*domain.TokenResult, error) {
	storeURL := strings.TrimRight(strings.TrimSpace(credentials["store_url"]), "/")
	key := strings.TrimSpace(credentials["consumer_key"])
	secret := strings.TrimSpace(credentials["consumer_secret"])
	if storeURL == "" || key == "" || secret == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if !strings.HasPrefix(storeURL, "https://") && !strings.HasPrefix(storeURL, "http://") {
		return nil, domain.ErrInvalidCredentials
	}

	endpoint := storeURL + a.cfg.APIPathPrefix + "/system_status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	req.SetBasicAuth(key, secret)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrInvalidCredentials, resp.StatusCode)
	}

	blob, err := json.Marshal(storedCredential{
		StoreURL:       storeURL,
		ConsumerKey:    key,
		ConsumerSecret: secret,
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenResult{
		AccessToken: string(blob),
		Metadata: map[string]any{
			"store_url": storeURL,
		},
	}, nil
}

func (a *Adapter) FetchAccountInfo(ctx context.Context, token, shop string) (*domain.AccountInfo, error) {
	return nil, domain.ErrUnsupportedFlow
}

func (a *Adapter) RegisterWebhook(ctx context.Context, token, shop string) error {
	return nil
}
