package statestore

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/reglet-dev/reglet-broker/application/config"
	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// Open builds the store selected by cfg. The returned closer releases
// the store's resources and is never nil.
func Open(cfg config.StoreConfig, logger *slog.Logger) (ports.StateStore, io.Closer, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "file":
		return NewFileStore(WithDir(cfg.Path)), nopCloser{}, nil
	case "sqlite":
		s, err := OpenSQLiteStore(cfg.Path, WithCacheSize(cfg.CacheSize), WithStoreLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
