package credentials

import "errors"

// Domain errors for credential persistence.
var (
	// ErrFieldTooLong is returned when a name or secret exceeds MaxFieldLength bytes.
	ErrFieldTooLong = errors.New("credential field exceeds 63 bytes")

	// ErrEmptyNetworkName is returned when saving credentials without a network name.
	ErrEmptyNetworkName = errors.New("network name is empty")

	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("credential record is corrupt")
)
