package credentials

import (
	"context"
	"fmt"
)

// MaxFieldLength is the usable length of the name and secret fields.
const MaxFieldLength = 63

// Credentials is the persisted network identity and secret.
type Credentials struct {
	NetworkName string
	Secret      string
	Configured  bool
}

// Validate checks the field bounds for a record about to be saved as configured.
func (c Credentials) Validate() error {
	if c.NetworkName == "" {
		return ErrEmptyNetworkName
	}
	return c.checkLengths()
}

// checkSave applies Validate to configured records. An unconfigured record
// only has to fit the fixed-size fields.
func (c Credentials) checkSave() error {
	if c.Configured {
		return c.Validate()
	}
	return c.checkLengths()
}

func (c Credentials) checkLengths() error {
	if len(c.NetworkName) > MaxFieldLength {
		return fmt.Errorf("network name: %w", ErrFieldTooLong)
	}
	if len(c.Secret) > MaxFieldLength {
		return fmt.Errorf("secret: %w", ErrFieldTooLong)
	}
	return nil
}

// Usable reports whether the record may be used to attempt an association.
// A configured record with an empty name counts as not configured.
func (c Credentials) Usable() bool {
	return c.Configured && c.NetworkName != ""
}

// Store is the persistent credential record.
//
// Load on a store that has never been written returns an unconfigured
// record and no error.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, c Credentials) error
	Clear(ctx context.Context) error
	IsConfigured(ctx context.Context) bool
}
