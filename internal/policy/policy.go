package policy

import (
	"strings"

	"pushdown/internal/schema"
)

// SensitiveTerms are the built-in exclusion terms. A column whose identifier
// contains any of them is never written to the flattened table.
var SensitiveTerms = []string{
	"SALARY", "HOURLY", "RATE", "PAY", "COMPENSATION",
	"WAGE", "EARNING", "AMOUNT", "BASE_PAY",
}

// IsExcluded reports whether ident contains a built-in sensitive term,
// ignoring case.
func IsExcluded(ident string) bool {
	_, hit := matchTerm(ident, SensitiveTerms)
	return hit
}

// IsFilterKey reports whether a raw key names a company code, i.e. contains
// both COMPANY and CODE ignoring case.
func IsFilterKey(raw string) bool {
	up := strings.ToUpper(raw)
	return strings.Contains(up, "COMPANY") && strings.Contains(up, "CODE")
}

func matchTerm(ident string, terms []string) (string, bool) {
	up := strings.ToUpper(ident)
	for _, t := range terms {
		if strings.Contains(up, t) {
			return t, true
		}
	}
	return "", false
}

// Options configures a Policy.
type Options struct {
	// ExtraSensitiveTerms extend SensitiveTerms; they cannot shrink it.
	ExtraSensitiveTerms []string
}

// Policy classifies discovered keys.
type Policy struct {
	terms []string
}

// New builds a Policy. Blank extra terms are ignored.
func New(opts Options) *Policy {
	terms := append([]string(nil), SensitiveTerms...)
	for _, t := range opts.ExtraSensitiveTerms {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	return &Policy{terms: terms}
}

// Terms returns the effective exclusion terms.
func (p *Policy) Terms() []string { return append([]string(nil), p.terms...) }

// Excluded reports whether ident contains any effective term.
func (p *Policy) Excluded(ident string) bool {
	_, hit := matchTerm(ident, p.terms)
	return hit
}

// Column is the classification of one discovered key.
type Column struct {
	// Key is the raw JSON key; projection reads this path.
	Key string
	// Name is the sanitized, unique column identifier.
	Name string
	Type schema.Type
	Tags schema.TagSet

	Included bool
	// Reason explains an exclusion; empty for included columns.
	Reason string
}

// Plan is the output of Classify.
type Plan struct {
	// Columns holds every discovered key in discovery order.
	Columns []Column
	// FilterKey is the first company code key, or nil.
	FilterKey *schema.Key
}

// Included returns the included columns in order.
func (p Plan) Included() []Column {
	var out []Column
	for _, c := range p.Columns {
		if c.Included {
			out = append(out, c)
		}
	}
	return out
}

// Excluded returns the excluded columns in order.
func (p Plan) Excluded() []Column {
	var out []Column
	for _, c := range p.Columns {
		if !c.Included {
			out = append(out, c)
		}
	}
	return out
}

// Classify sanitizes every key, applies the exclusion rule and selects the
// filter key. Identifiers that collide after sanitization get _2, _3, ...
// suffixes in discovery order. Exclusion is checked against the full
// sanitized key so that truncation cannot hide a sensitive term.
func (p *Policy) Classify(keys []schema.Key) Plan {
	plan := Plan{Columns: make([]Column, 0, len(keys))}
	taken := make(map[string]struct{}, len(keys))

	for i, k := range keys {
		name := uniqueIdent(Sanitize(k.Name), taken)
		taken[name] = struct{}{}

		col := Column{Key: k.Name, Name: name, Type: k.Type, Tags: k.Tags, Included: true}
		if term, hit := matchTerm(sanitizeFull(k.Name), p.terms); hit {
			col.Included = false
			col.Reason = "sensitive term " + term
		}
		plan.Columns = append(plan.Columns, col)

		if plan.FilterKey == nil && IsFilterKey(k.Name) {
			fk := keys[i]
			plan.FilterKey = &fk
		}
	}
	return plan
}
