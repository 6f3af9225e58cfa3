package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPlatform     = errors.New("invalid_platform")
	ErrInvalidShopDomain   = errors.New("invalid_shop_domain")
	ErrNotFound            = errors.New("integration_not_found")
	ErrMissingToken        = errors.New("missing_token")

	// OAuth state consume failures. Ordering matters to callers: an
	// unknown state must be indistinguishable from an already-used one.
	ErrInvalidState = errors.New("invalid_state")
	ErrShopMismatch = errors.New("shop_mismatch")
	ErrStateExpired = errors.New("state_expired")
)
