// Package sqlite lands raw JSON records in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pushdown/internal/landing"
	flat "pushdown/internal/storage/sqlite"
)

// Sink stores one record per row: seq, run_id, loaded_at, raw, checksum.
type Sink struct {
	db    *sql.DB
	table string
}

// Open opens dsn and returns a sink writing to table.
func Open(ctx context.Context, dsn, table string) (*Sink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite landing: DSN must not be empty")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("sqlite landing: table must not be empty")
	}
	db, err := flat.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite landing: ping: %w", err)
	}
	return &Sink{db: db, table: flat.Dialect.QuoteFQN(table)}, nil
}

func (s *Sink) Create(ctx context.Context) error {
	create := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	seq       INTEGER PRIMARY KEY,
	run_id    TEXT NOT NULL,
	loaded_at TEXT NOT NULL,
	raw       TEXT NOT NULL,
	checksum  INTEGER NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("sqlite landing: create %s: %w", s.table, err)
	}
	return s.Truncate(ctx)
}

func (s *Sink) Append(ctx context.Context, recs []landing.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite landing: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.table+` (seq, run_id, loaded_at, raw, checksum) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite landing: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		// checksum keeps its 64 bits; INTEGER is signed.
		if _, err := stmt.ExecContext(ctx, r.Seq, r.RunID, r.LoadedAt.Format(time.RFC3339Nano), string(r.Raw), int64(r.Checksum)); err != nil {
			return fmt.Errorf("sqlite landing: insert seq=%d: %w", r.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite landing: commit: %w", err)
	}
	return nil
}

func (s *Sink) ReadAll(ctx context.Context) ([]landing.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, run_id, loaded_at, raw, checksum FROM `+s.table+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("sqlite landing: select: %w", err)
	}
	defer rows.Close()

	var out []landing.Record
	for rows.Next() {
		var (
			r        landing.Record
			loadedAt string
			raw      string
			sum      int64
		)
		if err := rows.Scan(&r.Seq, &r.RunID, &loadedAt, &raw, &sum); err != nil {
			return nil, fmt.Errorf("sqlite landing: scan: %w", err)
		}
		if r.LoadedAt, err = time.Parse(time.RFC3339Nano, loadedAt); err != nil {
			return nil, fmt.Errorf("sqlite landing: seq=%d loaded_at: %w", r.Seq, err)
		}
		r.Raw = json.RawMessage(raw)
		r.Checksum = uint64(sum)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Sink) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table); err != nil {
		return fmt.Errorf("sqlite landing: truncate %s: %w", s.table, err)
	}
	return nil
}

func (s *Sink) Close() error { return s.db.Close() }

func init() {
	landing.Register("sqlite", func(ctx context.Context, cfg landing.Config) (landing.Sink, error) {
		return Open(ctx, cfg.DSN, cfg.Table)
	})
}
