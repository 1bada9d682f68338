// Package mysql implements the flattened store on MySQL through
// go-sql-driver/mysql. OPAQUE columns use the native JSON type.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"pushdown/internal/ddl"
	"pushdown/internal/storage"

	"github.com/go-sql-driver/mysql"
)

// Dialect renders MySQL DDL.
var Dialect = ddl.Dialect{
	Name:  "mysql",
	Quote: ddl.Backtick,
	Types: map[string]string{
		ddl.KindNumber:  "DOUBLE",
		ddl.KindBoolean: "BOOLEAN",
		ddl.KindVarchar: "LONGTEXT",
		ddl.KindOpaque:  "JSON",
	},
	IfNotExists: true,
	Placeholder: ddl.QuestionMark,
}

// Config holds MySQL repository configuration.
type Config struct {
	// DSN uses the driver format, e.g. "user:pass@tcp(db:3306)/hr".
	DSN     string
	Table   string
	Replace bool
}

// Repository is the MySQL flattened store.
type Repository struct {
	*storage.SQLRepository
}

// NewRepository parses the DSN, opens a pool and returns the repository
// with its cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql ping: %w", err)
	}

	r := &Repository{SQLRepository: &storage.SQLRepository{
		DB:      db,
		Dialect: Dialect,
		Table:   cfg.Table,
		Replace: cfg.Replace,
	}}
	return r, func() { _ = db.Close() }, nil
}
