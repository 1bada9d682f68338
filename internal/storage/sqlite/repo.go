// Package sqlite implements the flattened store on SQLite (modernc.org/sqlite,
// pure Go). SQLite has no bulk-load API, so batches are inserted with a
// prepared statement inside one transaction. OPAQUE columns hold JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pushdown/internal/ddl"
	"pushdown/internal/storage"

	_ "modernc.org/sqlite"
)

// Dialect renders SQLite DDL.
var Dialect = ddl.Dialect{
	Name:  "sqlite",
	Quote: ddl.DoubleQuote,
	Types: map[string]string{
		ddl.KindNumber:  "NUMERIC",
		ddl.KindBoolean: "BOOLEAN",
		ddl.KindVarchar: "TEXT",
		ddl.KindOpaque:  "TEXT",
	},
	IfNotExists: true,
	Placeholder: ddl.QuestionMark,
}

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is a file path or URI, e.g. "flat.db" or "file:flat.db?_pragma=busy_timeout(5000)".
	DSN     string
	Table   string
	Replace bool
}

// Repository is the SQLite flattened store.
type Repository struct {
	*storage.SQLRepository
}

// Open opens dsn with the modernc driver. A single connection is used so
// ":memory:" databases are shared by every statement.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewRepository opens the database and returns the repository with its
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	r := &Repository{SQLRepository: &storage.SQLRepository{
		DB:      db,
		Dialect: Dialect,
		Table:   cfg.Table,
		Replace: cfg.Replace,
	}}
	return r, func() { _ = db.Close() }, nil
}
