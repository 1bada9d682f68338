// Package storage contains the storage-agnostic contract for the flattened
// table, a registry of backends and the batched loader that drains projected
// rows into a backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pushdown/internal/ddl"
)

// Repository is a flattened-table store. Backends quote identifiers
// themselves; callers only hand over a ddl.TableDef and rows.
type Repository interface {
	// CreateSchema creates the target table. With Config.Replace an existing
	// table is dropped first; otherwise an existing table is kept.
	CreateSchema(ctx context.Context, t ddl.TableDef) error

	// CopyFrom bulk-inserts rows aligned to columns and returns the number of
	// rows the backend reports as written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Count returns the current row count of the target table.
	Count(ctx context.Context) (int64, error)

	Close()
}

// Config is the backend-independent repository configuration.
type Config struct {
	Kind    string
	DSN     string
	Table   string
	Replace bool
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// twice replaces the earlier factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the repository registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
