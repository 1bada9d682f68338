// Package flatten turns landed JSON into rows of the flattened table: it
// builds the table shape from the classified columns, derives the company
// code row predicate and projects every unwrapped element into a typed row.
package flatten

import (
	"pushdown/internal/ddl"
	"pushdown/internal/jsonvalue"
	"pushdown/internal/policy"
	"pushdown/internal/schema"
)

// Outcome reports whether a schema could be built.
type Outcome int

const (
	// Ready means the schema has at least one column.
	Ready Outcome = iota
	// NoKeys means discovery found nothing; schema build and population are
	// skipped.
	NoKeys
	// AllExcluded means every discovered key was excluded by policy.
	AllExcluded
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case NoKeys:
		return "no_keys"
	case AllExcluded:
		return "all_excluded"
	default:
		return "unknown"
	}
}

// Column is one column of the flattened table.
type Column struct {
	Name string
	// Key is the raw JSON key the value is read from.
	Key  string
	Type schema.Type
}

// Schema is the ordered shape of the flattened table. Treat it as
// immutable once built.
type Schema struct {
	Table   string
	Columns []Column
}

// Names returns the column identifiers in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// TableDef describes the table for a storage backend. All columns are
// nullable because any key may be absent from any element.
func (s Schema) TableDef() ddl.TableDef {
	cols := make([]ddl.ColumnDef, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = ddl.ColumnDef{Name: c.Name, Kind: string(c.Type), Nullable: true}
	}
	return ddl.TableDef{FQN: s.Table, Columns: cols}
}

// FilterOptions configures the row predicate.
type FilterOptions struct {
	Targets  []string
	Disabled bool
}

// Build derives the flattened schema and the optional row predicate from a
// classified plan. Only included columns are part of the schema. The
// predicate is nil when the plan has no filter key or filtering is disabled.
func Build(table string, plan policy.Plan, f FilterOptions) (Schema, *Predicate, Outcome) {
	if len(plan.Columns) == 0 {
		return Schema{Table: table}, nil, NoKeys
	}

	s := Schema{Table: table}
	for _, c := range plan.Included() {
		s.Columns = append(s.Columns, Column{Name: c.Name, Key: c.Key, Type: c.Type})
	}

	var pred *Predicate
	if plan.FilterKey != nil && !f.Disabled {
		pred = &Predicate{
			Key:     plan.FilterKey.Name,
			Column:  columnFor(plan, plan.FilterKey.Name),
			Targets: append([]string(nil), f.Targets...),
		}
	}

	if len(s.Columns) == 0 {
		return s, pred, AllExcluded
	}
	return s, pred, Ready
}

func columnFor(plan policy.Plan, key string) string {
	for _, c := range plan.Columns {
		if c.Key == key {
			return c.Name
		}
	}
	return policy.Sanitize(key)
}

// Demote scans every element the predicate keeps and returns a copy of s in
// which each typed column holding a value that cannot be coerced to its type
// becomes Opaque. It also returns the number of such cells. Running it
// before the table is created lets population store those values as
// untyped payloads instead of failing rows.
func (s Schema) Demote(records []jsonvalue.Value, pred *Predicate) (Schema, int) {
	bad := make([]bool, len(s.Columns))
	cells := 0
	for _, rec := range records {
		for _, elem := range schema.Unwrap(rec) {
			if !pred.Match(elem) {
				continue
			}
			for i, c := range s.Columns {
				if c.Type == schema.Opaque {
					continue
				}
				v, ok := elem.Get(c.Key)
				if !ok {
					continue
				}
				if _, ok := Coerce(v, c.Type); !ok {
					bad[i] = true
					cells++
				}
			}
		}
	}

	out := Schema{Table: s.Table, Columns: append([]Column(nil), s.Columns...)}
	for i := range out.Columns {
		if bad[i] {
			out.Columns[i].Type = schema.Opaque
		}
	}
	return out, cells
}
