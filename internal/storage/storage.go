// Package storage provides the durable key/value backends the dashboard
// persists its active collection to.
//
// Every backend holds opaque values under string keys and overwrites on save.
// The driver is chosen at startup:
//
//	sqlite   - a local database file (default)
//	postgres - a shared PostgreSQL database
//	memory   - process memory only, for tests and throwaway sessions
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/finboard/internal/core"
)

// Store is a core.Persister that owns resources and must be closed.
type Store interface {
	core.Persister
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver      string
	Path        string
	DatabaseURL string
	MaxConns    int
}

// Open connects to the backend named by opts.Driver and prepares its schema.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "sqlite":
		s, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		p, err := OpenPostgres(ctx, opts.DatabaseURL, opts.MaxConns)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
