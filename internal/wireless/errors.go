package wireless

import "errors"

var (
	// ErrCommandFailed is returned when wpa_cli answers FAIL or an unexpected reply.
	ErrCommandFailed = errors.New("wpa_cli command failed")

	// ErrInterfaceNotFound is returned when the wireless interface does not exist.
	ErrInterfaceNotFound = errors.New("wireless interface not found")
)
