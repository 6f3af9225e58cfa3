package domain

import "errors"

// Callback failures map one-to-one onto redirect error codes, so each
// stage of the flow gets its own sentinel.
var (
	ErrUnsupportedPlatform = errors.New("unsupported_platform")
	ErrUnsupportedFlow     = errors.New("unsupported_flow")
	ErrNotConfigured       = errors.New("platform_not_configured")
	ErrNotAMember          = errors.New("not_a_member")

	ErrProviderDenied     = errors.New("provider_denied")
	ErrMissingParams      = errors.New("missing_params")
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrTokenExchange      = errors.New("token_exchange_failed")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

// RedirectErrorCode flattens any callback failure to the query-string
// code carried back to the dashboard.
func RedirectErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrProviderDenied):
		return "provider_denied"
	case errors.Is(err, ErrMissingParams):
		return "missing_params"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrTokenExchange):
		return "token_exchange_failed"
	case errors.Is(err, ErrUnsupportedPlatform):
		return "unsupported_platform"
	case errors.Is(err, ErrNotConfigured):
		return "platform_not_configured"
	default:
		return "connect_failed"
	}
}
