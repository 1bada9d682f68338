package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pushdown/internal/ddl"
)

// SQLRepository implements the parts of Repository that every database/sql
// backend shares: table creation through a ddl.Dialect, a transactional
// prepared-statement insert and a row count. Backends embed it and replace
// CopyFrom when the driver has a faster bulk path.
type SQLRepository struct {
	DB      *sql.DB
	Dialect ddl.Dialect
	Table   string
	Replace bool
}

// CreateSchema implements Repository.
func (r *SQLRepository) CreateSchema(ctx context.Context, t ddl.TableDef) error {
	if strings.TrimSpace(t.FQN) == "" {
		t.FQN = r.Table
	}
	if r.Replace {
		if _, err := r.DB.ExecContext(ctx, r.Dialect.DropTable(t.FQN)); err != nil {
			return fmt.Errorf("%s: drop %s: %w", r.Dialect.Name, t.FQN, err)
		}
	}
	stmt, err := r.Dialect.CreateTable(t)
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: create %s: %w", r.Dialect.Name, t.FQN, err)
	}
	return nil
}

// CopyFrom inserts rows inside one transaction using a prepared INSERT.
// JSON cells are bound as text.
func (r *SQLRepository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: CopyFrom: columns must not be empty", r.Dialect.Name)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", r.Dialect.Name, err)
	}
	stmt, err := tx.PrepareContext(ctx, r.Dialect.Insert(r.Table, columns))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%s: prepare insert: %w", r.Dialect.Name, err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%s: CopyFrom: row length %d != columns length %d", r.Dialect.Name, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, TextCells(row)...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%s: insert: %w", r.Dialect.Name, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", r.Dialect.Name, err)
	}
	return inserted, nil
}

// Count implements Repository.
func (r *SQLRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, r.Dialect.Count(r.Table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count %s: %w", r.Dialect.Name, r.Table, err)
	}
	return n, nil
}

// Close closes the underlying pool.
func (r *SQLRepository) Close() { _ = r.DB.Close() }
