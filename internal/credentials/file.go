package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Record layout.
const (
	RecordSize = 512

	fieldSize    = MaxFieldLength + 1
	nameOffset   = 0
	secretOffset = nameOffset + fieldSize
	flagOffset   = secretOffset + fieldSize

	dirPermissions  = 0750
	filePermissions = 0600
)

// FileStore keeps credentials in a fixed-size binary record on disk.
//
// Thread Safety:
//   - Writes go through a temp file and rename, so a concurrent Load sees
//     either the old or the new record. Concurrent Saves are last-wins.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
// The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the record file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. A missing file is an unconfigured record.
func (s *FileStore) Load(_ context.Context) (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credential record: %w", err)
	}
	return decodeRecord(data)
}

// Save writes c with its configured flag as given. Configured records
// must pass Validate.
func (s *FileStore) Save(_ context.Context, c Credentials) error {
	if err := c.checkSave(); err != nil {
		return err
	}
	return s.write(encodeRecord(c))
}

// Clear writes an all-empty record with the configured flag unset.
func (s *FileStore) Clear(_ context.Context) error {
	return s.write(encodeRecord(Credentials{}))
}

// IsConfigured reports whether a usable record is stored. Read errors
// count as not configured.
func (s *FileStore) IsConfigured(ctx context.Context) bool {
	c, err := s.Load(ctx)
	return err == nil && c.Usable()
}

func (s *FileStore) write(record []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // No-op after successful rename

	if _, err := tmp.Write(record); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("syncing temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp record: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("setting record permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing credential record: %w", err)
	}
	return nil
}

func encodeRecord(c Credentials) []byte {
	buf := make([]byte, RecordSize)
	copy(buf[nameOffset:nameOffset+MaxFieldLength], c.NetworkName)
	copy(buf[secretOffset:secretOffset+MaxFieldLength], c.Secret)
	if c.Configured {
		buf[flagOffset] = 1
	}
	return buf
}

func decodeRecord(data []byte) (Credentials, error) {
	if len(data) < flagOffset+1 {
		return Credentials{}, fmt.Errorf("%w: %d bytes", ErrCorruptRecord, len(data))
	}
	flag := data[flagOffset]
	if flag > 1 {
		return Credentials{}, fmt.Errorf("%w: flag byte %#x", ErrCorruptRecord, flag)
	}
	return Credentials{
		NetworkName: cString(data[nameOffset : nameOffset+fieldSize]),
		Secret:      cString(data[secretOffset : secretOffset+fieldSize]),
		Configured:  flag == 1,
	}, nil
}

// cString returns the bytes up to the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
