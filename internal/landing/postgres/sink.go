// Package postgres lands raw JSON records in a Postgres table. The payload
// column is json rather than jsonb so the stored text keeps its key order
// and matches its checksum byte for byte.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pushdown/internal/landing"
	flat "pushdown/internal/storage/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink stores records with COPY and reads them back ordered by seq.
type Sink struct {
	pool  *pgxpool.Pool
	fqn   string
	ident pgx.Identifier
}

// Open connects to dsn and returns a sink writing to table, which may be
// schema-qualified.
func Open(ctx context.Context, dsn, table string) (*Sink, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("postgres landing: table must not be empty")
	}
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres landing: pgxpool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres landing: ping: %w", err)
	}
	return &Sink{pool: p, fqn: flat.Dialect.QuoteFQN(table), ident: identifier(table)}, nil
}

// CreateStatement returns the DDL for the landing table.
func CreateStatement(quotedFQN string) string {
	return `CREATE TABLE IF NOT EXISTS ` + quotedFQN + ` (
	seq       BIGINT PRIMARY KEY,
	run_id    TEXT NOT NULL,
	loaded_at TIMESTAMPTZ NOT NULL,
	raw       JSON NOT NULL,
	checksum  BIGINT NOT NULL
)`
}

func (s *Sink) Create(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, CreateStatement(s.fqn)); err != nil {
		return fmt.Errorf("postgres landing: create %s: %w", s.fqn, err)
	}
	return s.Truncate(ctx)
}

var columns = []string{"seq", "run_id", "loaded_at", "raw", "checksum"}

// Rows converts records into COPY rows.
func Rows(recs []landing.Record) [][]any {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{r.Seq, r.RunID, r.LoadedAt, string(r.Raw), int64(r.Checksum)}
	}
	return rows
}

func (s *Sink) Append(ctx context.Context, recs []landing.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if _, err := s.pool.CopyFrom(ctx, s.ident, columns, pgx.CopyFromRows(Rows(recs))); err != nil {
		return fmt.Errorf("postgres landing: copy into %s: %w", s.fqn, err)
	}
	return nil
}

func (s *Sink) ReadAll(ctx context.Context) ([]landing.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT seq, run_id, loaded_at, raw::text, checksum FROM `+s.fqn+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("postgres landing: select: %w", err)
	}
	defer rows.Close()

	var out []landing.Record
	for rows.Next() {
		var (
			r   landing.Record
			raw string
			sum int64
		)
		if err := rows.Scan(&r.Seq, &r.RunID, &r.LoadedAt, &raw, &sum); err != nil {
			return nil, fmt.Errorf("postgres landing: scan: %w", err)
		}
		r.LoadedAt = r.LoadedAt.UTC()
		r.Raw = json.RawMessage(raw)
		r.Checksum = uint64(sum)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Sink) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE TABLE `+s.fqn); err != nil {
		return fmt.Errorf("postgres landing: truncate %s: %w", s.fqn, err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

func identifier(fqn string) pgx.Identifier {
	var id pgx.Identifier
	for _, p := range strings.Split(fqn, ".") {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

func init() {
	landing.Register("postgres", func(ctx context.Context, cfg landing.Config) (landing.Sink, error) {
		return Open(ctx, cfg.DSN, cfg.Table)
	})
}
