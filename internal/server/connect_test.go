package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	connectdomain "github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/stretchr/testify/require"
)

func TestConnectAuthorizeRedirectsToProvider(t *testing.T) {
	env := setupServer(t)

	cookie := env.signup(t, "owner@example.com")
	orgID := env.createOrg(t, cookie, "Acme Coffee")

	env.connectSvc.authorizeURL = "https://acme.myshopify.com/admin/oauth/authorize?state=abc"

	req := httptest.NewRequest(http.MethodGet,
		"/connect/shopify/authorize?organization_id="+orgID.String()+"&shop=acme.myshopify.com", nil)
	req.AddCookie(cookie)
	w := env.do(req)

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	require.Equal(t, env.connectSvc.authorizeURL, w.Header().Get("Location"))
	require.Equal(t, orgID, env.connectSvc.lastAuthorize.OrgID)
	require.Equal(t, integrationdomain.PlatformShopify, env.connectSvc.lastAuthorize.Platform)
	require.Equal(t, "acme.myshopify.com", env.connectSvc.lastAuthorize.Shop)
}

func TestConnectAuthorizeRequiresSession(t *testing.T) {
	env := setupServer(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/connect/shopify/authorize?organization_id=1", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func callbackQuery(t *testing.T, w *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/dashboard/integrations", location.Path)
	return location.Query()
}

func TestConnectCallbackSuccessRedirect(t *testing.T) {
	env := setupServer(t)

	env.connectSvc.callbackResult = &connectdomain.CallbackResult{
		Platform: integrationdomain.PlatformShopify,
		Shop:     "acme.myshopify.com",
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/connect/shopify/callback?code=x&state=y", nil))

	query := callbackQuery(t, w)
	require.Equal(t, "success", query.Get("oauth_result"))
	require.Equal(t, "shopify", query.Get("platform"))
	require.Equal(t, "acme.myshopify.com", query.Get("shop"))
}

func TestConnectCallbackErrorRedirects(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"invalid state", integrationdomain.ErrInvalidState, "invalid_state"},
		{"expired state", integrationdomain.ErrStateExpired, "state_expired"},
		{"shop mismatch", integrationdomain.ErrShopMismatch, "shop_mismatch"},
		{"provider denied", connectdomain.ErrProviderDenied, "provider_denied"},
		{"token exchange", connectdomain.ErrTokenExchange, "token_exchange_failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupServer(t)
			env.connectSvc.callbackErr = tc.err

			w := env.do(httptest.NewRequest(http.MethodGet, "/connect/shopify/callback?state=z", nil))

			query := callbackQuery(t, w)
			require.Equal(t, "error", query.Get("oauth_result"))
			require.Equal(t, tc.code, query.Get("error"))
			require.NotEmpty(t, query.Get("message"))
			require.Equal(t, "shopify", query.Get("platform"))
		})
	}
}

func TestConnectCallbackUnknownPlatformRedirects(t *testing.T) {
	env := setupServer(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/connect/quickbooks/callback", nil))

	query := callbackQuery(t, w)
	require.Equal(t, "error", query.Get("oauth_result"))
	require.Equal(t, "unsupported_platform", query.Get("error"))
	require.NotEmpty(t, query.Get("message"))
}

func TestConnectWithKey(t *testing.T) {
	env := setupServer(t)

	cookie := env.signup(t, "owner@example.com")
	orgID := env.createOrg(t, cookie, "Acme Coffee")

	env.connectSvc.keyResult = &connectdomain.CallbackResult{
		Platform: integrationdomain.PlatformStripe,
		OrgID:    orgID,
	}

	req := jsonRequest(http.MethodPost, "/api/integrations/stripe/connect", gin.H{
		"credentials": gin.H{"api_key": "rk_live_abc"},
	})
	req.Header.Set(HeaderOrg, orgID.String())
	req.AddCookie(cookie)
	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	require.Equal(t, "STRIPE", body["platform"])
	require.Equal(t, "CONNECTED", body["status"])
	require.Equal(t, "rk_live_abc", env.connectSvc.lastKey.Credentials["api_key"])
}

func TestConnectWithKeyInvalidCredentials(t *testing.T) {
	env := setupServer(t)

	cookie := env.signup(t, "owner@example.com")
	orgID := env.createOrg(t, cookie, "Acme Coffee")

	env.connectSvc.keyErr = connectdomain.ErrInvalidCredentials

	req := jsonRequest(http.MethodPost, "/api/integrations/stripe/connect", gin.H{
		"credentials": gin.H{"api_key": "bogus"},
	})
	req.Header.Set(HeaderOrg, orgID.String())
	req.AddCookie(cookie)
	w := env.do(req)

	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}
