// Package shopify implements the Shopify OAuth connect flow.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/pkg/secrets"
)

const ordersCreateTopic = "orders/create"

type Config struct {
	APIKey     string
	APISecret  string
	Scopes     string
	AppBaseURL string
}

type Adapter struct {
	cfg    Config
	app    goshopify.App
	client *http.Client
}

func New(cfg Config, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{
		cfg: cfg,
		app: goshopify.App{
			ApiKey:    cfg.APIKey,
			ApiSecret: cfg.APISecret,
		},
		client: client,
	}
}

func (a *Adapter) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformShopify
}

func (a *Adapter) UsesRedirectFlow() bool { return true }

func (a *Adapter) BuildAuthorizeURL(req domain.AuthorizeRequest) (string, error) {
	if a.cfg.APIKey == "" || a.cfg.APISecret == "" {
		return "", domain.ErrNotConfigured
	}
	if req.Shop == "" {
		return "", domain.ErrMissingParams
	}

	query := url.Values{}
	query.Set("client_id", a.cfg.APIKey)
	query.Set("scope", a.cfg.Scopes)
	query.Set("redirect_uri", req.RedirectURI)
	query.Set("state", req.State)

	return fmt.Sprintf("https://%s.myshopify.com/admin/oauth/authorize?%s", req.Shop, query.Encode()), nil
}

// VerifyCallbackSignature checks the hmac query parameter: hex HMAC-SHA256
// over the remaining parameters sorted and joined as key=value pairs.
func (a *Adapter) VerifyCallbackSignature(query url.Values) error {
	signature := strings.TrimSpace(query.Get("hmac"))
	if signature == "" {
		return domain.ErrInvalidSignature
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		if key == "hmac" || key == "signature" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+strings.Join(query[key], ","))
	}
	message := strings.Join(pairs, "&")

	if !secrets.VerifyHMAC([]byte(message), signature, a.cfg.APISecret) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

func (a *Adapter) ExchangeToken(ctx context.Context, code, shop string) (*domain.TokenResult, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     a.cfg.APIKey,
		"client_secret": a.cfg.APISecret,
		"code":          code,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}

	endpoint := fmt.Sprintf("https://%s.myshopify.com/admin/oauth/access_token", shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrTokenExchange, resp.StatusCode, string(body))
	}

	var token accessTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", domain.ErrTokenExchange)
	}

	return &domain.TokenResult{
		AccessToken: token.AccessToken,
		Scopes:      token.Scope,
	}, nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context, credentials map[string]string) (*domain.TokenResult, error) {
	return nil, domain.ErrUnsupportedFlow
}

func (a *Adapter) FetchAccountInfo(ctx context.Context, token, shop string) (*domain.AccountInfo, error) {
	client, err := goshopify.NewClient(a.app, shop, token)
	if err != nil {
		return nil, err
	}
	info, err := client.Shop.Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &domain.AccountInfo{
		Name: info.Name,
		Metadata: map[string]any{
			"shop_id":    info.Id,
			"shop_email": info.Email,
			"plan_name":  info.PlanName,
			"currency":   info.Currency,
			"timezone":   info.Timezone,
		},
	}, nil
}

func (a *Adapter) RegisterWebhook(ctx context.Context, token, shop string) error {
	client, err := goshopify.NewClient(a.app, shop, token)
	if err != nil {
		return err
	}
	_, err = client.Webhook.Create(ctx, goshopify.Webhook{
		Topic:   ordersCreateTopic,
		Address: strings.TrimRight(a.cfg.AppBaseURL, "/") + "/webhooks/shopify/orders-create",
		Format:  "json",
	})
	return err
}
