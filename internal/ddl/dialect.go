// Package ddl is a small storage-agnostic model for the flattened table and
// per-dialect rendering of the few statements the stores need. Callers never
// concatenate identifiers themselves; every name goes through a Dialect's
// quoting.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect renders DDL/DML for one SQL backend.
type Dialect struct {
	Name string

	// Quote quotes one identifier segment.
	Quote func(id string) string

	// Types maps logical kinds to SQL types.
	Types map[string]string

	// IfNotExists adds IF NOT EXISTS to CREATE TABLE.
	IfNotExists bool

	// Placeholder renders the i-th (0-based) bind parameter.
	Placeholder func(i int) string
}

// DoubleQuote quotes like ANSI SQL: "id", escaping embedded quotes.
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// Bracket quotes like SQL Server: [id], escaping ].
func Bracket(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// Backtick quotes like MySQL: `id`, escaping backticks.
func Backtick(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// QuestionMark is the database/sql placeholder used by sqlite, mysql and duckdb.
func QuestionMark(int) string { return "?" }

// MapType resolves the SQL type for c.
func (d Dialect) MapType(c ColumnDef) (string, error) {
	if t := strings.TrimSpace(c.SQLType); t != "" {
		return t, nil
	}
	t, ok := d.Types[strings.ToUpper(c.Kind)]
	if !ok {
		return "", fmt.Errorf("%s ddl: no SQL type for kind %q (column %s)", d.Name, c.Kind, c.Name)
	}
	return t, nil
}

// QuoteFQN quotes a possibly schema-qualified name segment by segment.
// Empty segments are dropped.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(strings.TrimSpace(fqn), ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, d.Quote(p))
	}
	return strings.Join(out, ".")
}

// CreateTable renders a deterministic CREATE TABLE statement.
func (d Dialect) CreateTable(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns))
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		if _, dup := seen[name]; dup {
			return "", fmt.Errorf("%s ddl: duplicate column %s in table %s", d.Name, name, fqn)
		}
		seen[name] = struct{}{}

		typ, err := d.MapType(c)
		if err != nil {
			return "", err
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}

	head := "CREATE TABLE "
	if d.IfNotExists {
		head += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n);", head, d.QuoteFQN(fqn), strings.Join(cols, ",\n  ")), nil
}

// DropTable renders DROP TABLE IF EXISTS.
func (d Dialect) DropTable(fqn string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn)
}

// Insert renders a single-row parameterized INSERT.
func (d Dialect) Insert(fqn string, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	ph := d.Placeholder
	if ph == nil {
		ph = QuestionMark
	}
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		params[i] = ph(i)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteFQN(fqn), strings.Join(quoted, ", "), strings.Join(params, ", "))
}

// Count renders SELECT COUNT(*).
func (d Dialect) Count(fqn string) string {
	return "SELECT COUNT(*) FROM " + d.QuoteFQN(fqn)
}
