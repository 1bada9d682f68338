// Package postgres implements the flattened store on Postgres using pgx v5.
// Rows are written with COPY; OPAQUE columns are JSONB and receive the raw
// JSON payload unchanged.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pushdown/internal/ddl"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dialect renders Postgres DDL.
var Dialect = ddl.Dialect{
	Name:  "postgres",
	Quote: ddl.DoubleQuote,
	Types: map[string]string{
		ddl.KindNumber:  "NUMERIC",
		ddl.KindBoolean: "BOOLEAN",
		ddl.KindVarchar: "TEXT",
		ddl.KindOpaque:  "JSONB",
	},
	IfNotExists: true,
	Placeholder: func(i int) string { return "$" + strconv.Itoa(i+1) },
}

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string
	Table   string // optionally schema-qualified, e.g. "hr.employees"
	Replace bool
}

// Repository is the Postgres flattened store.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository opens a pool and returns the repository with its cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// CreateSchema creates the target table, dropping it first when configured.
func (r *Repository) CreateSchema(ctx context.Context, t ddl.TableDef) error {
	if strings.TrimSpace(t.FQN) == "" {
		t.FQN = r.cfg.Table
	}
	stmt, err := Dialect.CreateTable(t)
	if err != nil {
		return err
	}
	if r.cfg.Replace {
		if _, err := r.pool.Exec(ctx, Dialect.DropTable(t.FQN)); err != nil {
			return fmt.Errorf("drop %s: %w", t.FQN, err)
		}
	}
	if _, err := r.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", t.FQN, err)
	}
	return nil
}

// CopyFrom streams rows with COPY. NUL in text and JSON cells becomes U+FFFD.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(scrubRows(rows)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return n, fmt.Errorf("copy into %s: %s (%s)", r.cfg.Table, pgErr.Detail, pgErr.SQLState())
		}
		return n, fmt.Errorf("copy into %s: %w", r.cfg.Table, err)
	}
	return n, nil
}

// Count returns the row count of the target table.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, Dialect.Count(r.cfg.Table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.cfg.Table, err)
	}
	return n, nil
}

// splitFQN converts "schema.table" into a pgx.Identifier.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
