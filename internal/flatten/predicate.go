package flatten

import (
	"strings"

	"pushdown/internal/jsonvalue"
)

// Predicate keeps elements whose value at Key equals one of Targets. String
// values compare by content and numbers by their literal text; any other
// value, or a missing key, fails the predicate. A nil *Predicate keeps
// everything.
type Predicate struct {
	Key     string
	Column  string
	Targets []string
}

// Match evaluates the predicate against one unwrapped element.
func (p *Predicate) Match(elem jsonvalue.Value) bool {
	if p == nil {
		return true
	}
	v, ok := elem.Get(p.Key)
	if !ok {
		return false
	}
	var got string
	switch v.Kind() {
	case jsonvalue.String:
		got, _ = v.AsString()
	case jsonvalue.Number:
		n, _ := v.AsNumber()
		got = n.String()
	default:
		return false
	}
	for _, t := range p.Targets {
		if got == t {
			return true
		}
	}
	return false
}

// Describe renders the predicate for logs and reports, e.g.
// COMPANYCODE = 'GXLLC'.
func (p *Predicate) Describe() string {
	if p == nil {
		return "none"
	}
	quoted := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		quoted[i] = "'" + strings.ReplaceAll(t, "'", "''") + "'"
	}
	switch len(quoted) {
	case 0:
		return p.Column + " IN ()"
	case 1:
		return p.Column + " = " + quoted[0]
	default:
		return p.Column + " IN (" + strings.Join(quoted, ", ") + ")"
	}
}
