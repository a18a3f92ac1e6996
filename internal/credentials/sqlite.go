package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps credentials in the single-row credentials table.
// The table is created by the embedded migrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns a store on an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load reads the credential row. No row is an unconfigured record.
func (s *SQLiteStore) Load(ctx context.Context) (Credentials, error) {
	var c Credentials
	var configured int
	err := s.db.QueryRowContext(ctx,
		"SELECT network_name, secret, configured FROM credentials WHERE id = 1",
	).Scan(&c.NetworkName, &c.Secret, &configured)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("querying credentials: %w", err)
	}
	c.Configured = configured == 1
	return c, nil
}

// Save upserts c with its configured flag as given. Configured records
// must pass Validate.
func (s *SQLiteStore) Save(ctx context.Context, c Credentials) error {
	if err := c.checkSave(); err != nil {
		return err
	}
	return s.upsert(ctx, c.NetworkName, c.Secret, c.Configured)
}

// Clear overwrites the row with empty fields and configured unset.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.upsert(ctx, "", "", false)
}

// IsConfigured reports whether a usable row is stored.
func (s *SQLiteStore) IsConfigured(ctx context.Context) bool {
	c, err := s.Load(ctx)
	return err == nil && c.Usable()
}

func (s *SQLiteStore) upsert(ctx context.Context, name, secret string, configured bool) error {
	flag := 0
	if configured {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, network_name, secret, configured, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			network_name = excluded.network_name,
			secret = excluded.secret,
			configured = excluded.configured,
			updated_at = excluded.updated_at
	`, name, secret, flag, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}
