package statestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	dir      string      // Directory holding one file per key
	ext      string      // Extension appended to escaped keys
	dirPerm  os.FileMode // Permission for created directories
	filePerm os.FileMode // Permission for state files
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		dir:      filepath.Join(os.Getenv("HOME"), ".reglet", "broker"),
		ext:      ".yaml",
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithDir sets the directory holding state files.
func WithDir(dir string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dir = dir
	}
}

// WithExtension sets the file extension appended to each key.
func WithExtension(ext string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.ext = ext
	}
}

// WithFilePermissions sets the file permissions for state files.
// Default is 0o600 (user-only). Use with caution.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions for the state directory.
// Default is 0o755.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// FileStore persists each key in its own file.
type FileStore struct {
	config fileStoreConfig
}

var _ ports.StateStore = (*FileStore)(nil)

// NewFileStore creates a new FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Get implements ports.StateStore. A missing file means nothing was stored.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return data, true, nil
}

// Put implements ports.StateStore. The file is replaced atomically.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.config.dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	target := s.path(key)
	tmp, err := os.CreateTemp(s.config.dir, ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), s.config.filePerm); err != nil {
		return fmt.Errorf("failed to set state permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to replace state %s: %w", key, err)
	}
	return nil
}

// Location implements ports.StateStore.
func (s *FileStore) Location() string {
	return s.config.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.config.dir, url.PathEscape(key)+s.config.ext)
}
