// Package duckdb implements the flattened store on DuckDB. Batches go
// through the driver's appender; an empty DSN opens an in-memory database,
// which suits dry runs and tests.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"pushdown/internal/ddl"
	"pushdown/internal/storage"

	duckdb "github.com/duckdb/duckdb-go/v2"
)

// Dialect renders DuckDB DDL.
var Dialect = ddl.Dialect{
	Name:  "duckdb",
	Quote: ddl.DoubleQuote,
	Types: map[string]string{
		ddl.KindNumber:  "DOUBLE",
		ddl.KindBoolean: "BOOLEAN",
		ddl.KindVarchar: "VARCHAR",
		ddl.KindOpaque:  "JSON",
	},
	IfNotExists: true,
	Placeholder: ddl.QuestionMark,
}

// Config holds DuckDB repository configuration.
type Config struct {
	// DSN is a database file path; empty means in-memory.
	DSN     string
	Table   string // "table" or "schema.table"
	Replace bool
}

// Repository is the DuckDB flattened store.
type Repository struct {
	*storage.SQLRepository
}

// NewRepository opens the database and returns the repository with its
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("duckdb: ping: %w", err)
	}
	r := &Repository{SQLRepository: &storage.SQLRepository{
		DB:      db,
		Dialect: Dialect,
		Table:   cfg.Table,
		Replace: cfg.Replace,
	}}
	return r, func() { _ = db.Close() }, nil
}

// CopyFrom appends rows through a DuckDB appender. The appender writes whole
// rows in table order, so columns must match the created table.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	schema, table := splitFQN(r.Table)

	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("duckdb: conn: %w", err)
	}
	defer conn.Close()

	var n int64
	err = conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected raw conn type %T", raw)
		}
		app, err := duckdb.NewAppenderFromConn(driverConn, schema, table)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}

		vals := make([]driver.Value, len(columns))
		for i, row := range rows {
			if len(row) != len(columns) {
				_ = app.Close()
				return fmt.Errorf("row %d length %d != columns length %d", i, len(row), len(columns))
			}
			for j, v := range storage.PlainCells(row) {
				vals[j] = v
			}
			if err := app.AppendRow(vals...); err != nil {
				_ = app.Close()
				return fmt.Errorf("append row %d: %w", i, err)
			}
			n++
		}
		// Close flushes the appender.
		if err := app.Close(); err != nil {
			return fmt.Errorf("flush appender: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("duckdb: %w", err)
	}
	return n, nil
}

// splitFQN splits "schema.table"; a bare name uses the default schema.
func splitFQN(fqn string) (schema, table string) {
	fqn = strings.TrimSpace(fqn)
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}
