package domain

import "errors"

var (
	ErrUnsupportedPlatform = errors.New("unsupported_platform")
	ErrNotConnected        = errors.New("integration_not_connected")
	ErrMissingToken        = errors.New("missing_access_token")
	ErrTokenDecrypt        = errors.New("token_decrypt_failed")
)
