// Package mssql implements the flattened store on SQL Server using the
// go-mssqldb bulk copy API. NUMBER columns are FLOAT and OPAQUE columns hold
// JSON text in NVARCHAR(MAX).
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"pushdown/internal/ddl"
	"pushdown/internal/storage"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Dialect renders SQL Server DDL. CREATE TABLE has no IF NOT EXISTS form;
// CreateSchema guards it with OBJECT_ID instead.
var Dialect = ddl.Dialect{
	Name:  "mssql",
	Quote: ddl.Bracket,
	Types: map[string]string{
		ddl.KindNumber:  "FLOAT",
		ddl.KindBoolean: "BIT",
		ddl.KindVarchar: "NVARCHAR(MAX)",
		ddl.KindOpaque:  "NVARCHAR(MAX)",
	},
	Placeholder: func(i int) string { return "@p" + strconv.Itoa(i+1) },
}

// Config holds MSSQL repository configuration.
type Config struct {
	DSN     string
	Table   string // e.g. "dbo.employees"
	Replace bool
}

// Repository is the SQL Server flattened store. Count and Close come from
// the shared database/sql implementation; table creation and bulk insert
// are SQL Server specific.
type Repository struct {
	*storage.SQLRepository
}

func newRepo(db *sql.DB, cfg Config) *Repository {
	return &Repository{SQLRepository: &storage.SQLRepository{
		DB:      db,
		Dialect: Dialect,
		Table:   cfg.Table,
		Replace: cfg.Replace,
	}}
}

// NewRepository validates the DSN, opens a pool and returns the repository
// with its cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return newRepo(db, cfg), func() { _ = db.Close() }, nil
}

// CreateSchema creates the table unless it exists; with Replace the table
// is dropped first.
func (r *Repository) CreateSchema(ctx context.Context, t ddl.TableDef) error {
	if strings.TrimSpace(t.FQN) == "" {
		t.FQN = r.Table
	}
	stmt, err := Dialect.CreateTable(t)
	if err != nil {
		return err
	}
	if r.Replace {
		if _, err := r.DB.ExecContext(ctx, Dialect.DropTable(t.FQN)); err != nil {
			return fmt.Errorf("drop %s: %w", t.FQN, err)
		}
	}
	if _, err := r.DB.ExecContext(ctx, guardCreate(t.FQN, stmt)); err != nil {
		return fmt.Errorf("create %s: %w", t.FQN, err)
	}
	return nil
}

// guardCreate wraps a CREATE TABLE so it only runs when the object is
// missing. The name is passed as an N'' literal of the quoted FQN.
func guardCreate(fqn, create string) string {
	lit := strings.ReplaceAll(Dialect.QuoteFQN(fqn), "'", "''")
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\n%s", lit, create)
}

// CopyFrom bulk-copies rows into the target table in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(r.Table, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, storage.PlainCells(row)...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
