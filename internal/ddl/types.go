package ddl

// Logical column types produced by schema inference. Backends map them to
// concrete SQL types through a Dialect.
const (
	KindNumber  = "NUMBER"
	KindBoolean = "BOOLEAN"
	KindVarchar = "VARCHAR"
	KindOpaque  = "OPAQUE"
)

// ColumnDef describes a single column. Name is unquoted; quoting happens at
// render time.
//
// Kind is the logical type. SQLType, when set, overrides the dialect's
// mapping for Kind.
type ColumnDef struct {
	Name     string
	Kind     string
	SQLType  string
	Nullable bool
}

// TableDef holds the table name, optionally schema-qualified in dotted form,
// and the ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// ColumnNames returns the column names in order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
