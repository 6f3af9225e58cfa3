package sync

import (
	"net/http"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/sync/service"
	"github.com/pulseboard/pulseboard/internal/sync/syncers"
	"github.com/pulseboard/pulseboard/internal/sync/syncers/facebook"
	"github.com/pulseboard/pulseboard/internal/sync/syncers/google"
	"github.com/pulseboard/pulseboard/internal/sync/syncers/shopify"
	"github.com/pulseboard/pulseboard/internal/sync/syncers/stripe"
	"github.com/pulseboard/pulseboard/internal/sync/syncers/woocommerce"
	"go.uber.org/fx"
)

var Module = fx.Module("sync.service",
	fx.Provide(provideRegistry),
	fx.Provide(service.New),
)

func provideRegistry(cfg config.Config, client *http.Client) *syncers.Registry {
	return syncers.NewRegistry(
		shopify.New(shopify.Config{
			APIKey:    cfg.Shopify.APIKey,
			APISecret: cfg.Shopify.APISecret,
		}, client),
		stripe.New(stripe.Config{
			APIBaseURL: cfg.Stripe.APIBaseURL,
		}, client),
		woocommerce.New(woocommerce.Config{
			APIPathPrefix: cfg.WooCommerce.APIPathPrefix,
		}, client),
		facebook.New(facebook.Config{
			AppSecret: cfg.Facebook.AppSecret,
		}, client),
		google.New(),
	)
}
