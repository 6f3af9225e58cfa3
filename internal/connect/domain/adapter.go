// Package domain defines the per-platform connect adapter contract.
package domain

import (
	"context"
	"net/url"

	"github.com/bwmarrin/snowflake"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
)

// AuthorizeRequest carries everything an adapter needs to build the
// provider consent URL.
type AuthorizeRequest struct {
	Shop        string
	State       string
	RedirectURI string
}

// TokenResult is the outcome of a token exchange or credential
// validation. AccessToken is plaintext here; the service encrypts it
// before it ever reaches storage.
type TokenResult struct {
	AccessToken string
	Scopes      string
	Metadata    map[string]any
}

// AccountInfo is advisory provider account detail fetched after connect.
type AccountInfo struct {
	Name     string
	Metadata map[string]any
}

// Adapter is one platform's connect implementation. OAuth platforms
// implement the redirect flow; key-based platforms implement
// ValidateCredentials and return ErrUnsupportedFlow for the rest.
type Adapter interface {
	Platform() integrationdomain.Platform

	// UsesRedirectFlow reports whether connecting goes through a
	// browser consent screen.
	UsesRedirectFlow() bool

	BuildAuthorizeURL(req AuthorizeRequest) (string, error)

	// VerifyCallbackSignature authenticates the callback query before
	// any state is looked up or consumed.
	VerifyCallbackSignature(query url.Values) error

	ExchangeToken(ctx context.Context, code, shop string) (*TokenResult, error)

	// ValidateCredentials checks merchant-supplied keys against the
	// provider API for platforms without a redirect flow.
	ValidateCredentials(ctx context.Context, credentials map[string]string) (*TokenResult, error)

	// FetchAccountInfo and RegisterWebhook run after the token is
	// persisted. Failures are logged, never surfaced to the merchant.
	FetchAccountInfo(ctx context.Context, token, shop string) (*AccountInfo, error)
	RegisterWebhook(ctx context.Context, token, shop string) error
}

// AuthorizeParams is the service-level authorize request.
type AuthorizeParams struct {
	OrgID    snowflake.ID
	UserID   snowflake.ID
	Platform integrationdomain.Platform
	Shop     string
}

// CallbackResult is returned on a successful callback.
type CallbackResult struct {
	Platform integrationdomain.Platform
	Shop     string
	OrgID    snowflake.ID
}

// ConnectWithKeyParams connects a key-based platform.
type ConnectWithKeyParams struct {
	OrgID       snowflake.ID
	UserID      snowflake.ID
	Platform    integrationdomain.Platform
	Credentials map[string]string
}

type Service interface {
	Authorize(ctx context.Context, params AuthorizeParams) (string, error)
	Callback(ctx context.Context, platform integrationdomain.Platform, query url.Values) (*CallbackResult, error)
	ConnectWithKey(ctx context.Context, params ConnectWithKeyParams) (*CallbackResult, error)
}
