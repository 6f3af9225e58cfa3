package connect

import (
	"net/http"
	"time"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/connect/adapters"
	"github.com/pulseboard/pulseboard/internal/connect/adapters/facebook"
	"github.com/pulseboard/pulseboard/internal/connect/adapters/google"
	"github.com/pulseboard/pulseboard/internal/connect/adapters/shopify"
	"github.com/pulseboard/pulseboard/internal/connect/adapters/stripe"
	"github.com/pulseboard/pulseboard/internal/connect/adapters/woocommerce"
	"github.com/pulseboard/pulseboard/internal/connect/service"
	"github.com/pulseboard/pulseboard/internal/observability/tracing"
	"github.com/pulseboard/pulseboard/pkg/secrets"
	"go.uber.org/fx"
)

// outboundTimeout bounds every call to a provider API.
const outboundTimeout = 15 * time.Second

var Module = fx.Module("connect.service",
	fx.Provide(provideHTTPClient),
	fx.Provide(provideBox),
	fx.Provide(provideRegistry),
	fx.Provide(service.New),
)

func provideHTTPClient() *http.Client {
	return tracing.WrapHTTPClient(&http.Client{Timeout: outboundTimeout})
}

func provideBox(cfg config.Config) (*secrets.Box, error) {
	return secrets.NewBox(cfg.TokenEncryptionSecret)
}

func provideRegistry(cfg config.Config, client *http.Client) *adapters.Registry {
	return adapters.NewRegistry(
		shopify.New(shopify.Config{
			APIKey:     cfg.Shopify.APIKey,
			APISecret:  cfg.Shopify.APISecret,
			Scopes:     cfg.Shopify.Scopes,
			AppBaseURL: cfg.AppBaseURL,
		}, client),
		facebook.New(facebook.Config{
			AppID:     cfg.Facebook.AppID,
			AppSecret: cfg.Facebook.AppSecret,
			Scopes:    cfg.Facebook.Scopes,
		}, client),
		google.New(),
		stripe.New(stripe.Config{
			APIBaseURL: cfg.Stripe.APIBaseURL,
		}, client),
		woocommerce.New(woocommerce.Config{
			APIPathPrefix: cfg.WooCommerce.APIPathPrefix,
		}, client),
	)
}
