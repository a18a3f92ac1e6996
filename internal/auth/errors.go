package auth

import "errors"

// Domain errors for operator tokens.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
	ErrNoSecret     = errors.New("signing secret not configured")
)
