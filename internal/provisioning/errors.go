package provisioning

import "errors"

var (
	// ErrNotActive is returned by Submit when no provisioning window is open.
	ErrNotActive = errors.New("provisioning is not active")

	// ErrAlreadyComplete is returned by Submit after credentials were accepted.
	ErrAlreadyComplete = errors.New("provisioning already complete")

	// ErrInvalidCredentials is returned by Submit for out-of-bounds credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
