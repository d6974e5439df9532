// internal/storage/factory.go
package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/internal/storage/memory"
	"github.com/reacture/engine/internal/storage/postgres"
	sqlitestorage "github.com/reacture/engine/internal/storage/sqlite"
	"github.com/reacture/engine/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// Storage types accepted in StorageConfig.Type.
const (
	TypeMemory    = "memory"
	TypePostgres  = "postgres"
	TypeSQLite    = "sqlite"
	TypeWebSocket = "websocket"
)

// Options carries what the database backends need besides StorageConfig.
type Options struct {
	DB       config.DBConfig
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// NewBackend creates the storage backends named in configuration. Several
// types give a Multi.
func NewBackend(cfg config.StorageConfig, opts Options) (Backend, error) {
	types := cfg.Types()
	if len(types) == 0 {
		return nil, errors.New("no storage type configured")
	}

	backends := make(Multi, 0, len(types))
	for _, t := range types {
		b, err := newBackend(t, cfg, opts)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if len(backends) == 1 {
		return backends[0], nil
	}
	return backends, nil
}

func newBackend(kind string, cfg config.StorageConfig, opts Options) (Backend, error) {
	switch kind {
	case TypePostgres:
		return postgres.New(postgres.Dependencies{
			DBConfig: opts.DB,
			Logger:   opts.Logger,
			DBLogger: opts.DBLogger,
		}), nil
	case TypeSQLite:
		return sqlitestorage.New(sqlitestorage.Config{
			DumpPath:     cfg.SQLite.Path,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, opts.Logger, opts.DBLogger)
	case TypeWebSocket:
		return websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, opts.Logger), nil
	case TypeMemory:
		return memory.New(cfg.Memory, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", kind)
	}
}
