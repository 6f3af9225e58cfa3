package domain

import "errors"

var (
	ErrNotFound            = errors.New("alert_not_found")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidTransition   = errors.New("invalid_transition")
)
