package session

import "errors"

var (
	// ErrSessionClosed is returned by Publish while the session is not open.
	ErrSessionClosed = errors.New("session: not open")
)
