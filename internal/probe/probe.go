// Package probe samples the first pages of an API and reports what a
// pushdown run would build from them: the discovered keys with their types,
// which columns policy keeps, the row filter, and the CREATE TABLE statement
// for a chosen dialect. Nothing is landed or written.
package probe

import (
	"context"
	"fmt"
	"sort"

	"pushdown/internal/datasource"
	"pushdown/internal/ddl"
	"pushdown/internal/flatten"
	"pushdown/internal/ingest"
	"pushdown/internal/jsonvalue"
	"pushdown/internal/landing"
	"pushdown/internal/policy"
	"pushdown/internal/schema"
)

// Options control sampling and classification.
type Options struct {
	// Pages is the number of pages to sample. Defaults to 1.
	Pages    int
	PageSize int

	WrapperKeys []string
	Table       string
	Policy      policy.Options
	Filter      flatten.FilterOptions

	// Dialect renders the DDL preview. A zero Dialect skips it.
	Dialect ddl.Dialect
}

// Column is one discovered key as the probe reports it.
type Column struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Observed    string `json:"observed"`
	Occurrences int    `json:"occurrences"`
	Included    bool   `json:"included"`
	Reason      string `json:"reason,omitempty"`
	// Demoted is set when a sampled value did not fit Type.
	Demoted bool `json:"demoted,omitempty"`
}

// ValueCount is an observed filter key value and how often it occurred.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Result is the probe report.
type Result struct {
	Pages    int   `json:"pages"`
	Records  int64 `json:"records"`
	Elements int   `json:"elements"`
	// Exhausted is set when the source ran dry within the sample.
	Exhausted bool `json:"exhausted"`

	Columns []Column `json:"columns"`
	Outcome string   `json:"outcome"`

	FilterKey string `json:"filter_key,omitempty"`
	// FilterValues lists the filter key values seen, most frequent first.
	FilterValues []ValueCount `json:"filter_values,omitempty"`
	Predicate    string       `json:"predicate"`
	// Matching counts sampled elements the predicate keeps.
	Matching int `json:"matching"`

	DDL string `json:"ddl,omitempty"`
}

// Run samples opts.Pages pages from f into memory and classifies them.
func Run(ctx context.Context, f datasource.PageFetcher, opts Options) (*Result, error) {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	sink := landing.NewMemory()
	res, err := ingest.Run(ctx, f, sink, ingest.Options{
		Job:         "probe",
		RunID:       "probe",
		PageSize:    opts.PageSize,
		MaxPages:    opts.Pages,
		WrapperKeys: opts.WrapperKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	recs, err := sink.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	values, err := landing.Values(recs)
	if err != nil {
		return nil, err
	}

	out := &Result{Pages: res.Pages, Records: res.Records, Exhausted: !res.HitPageLimit}
	out.classify(values, opts)
	return out, nil
}

func (r *Result) classify(values []jsonvalue.Value, opts Options) {
	keys := schema.Discover(values)
	plan := policy.New(opts.Policy).Classify(keys)
	s, pred, outcome := flatten.Build(opts.Table, plan, opts.Filter)
	r.Outcome = outcome.String()
	r.Predicate = pred.Describe()

	demoted, _ := s.Demote(values, pred)
	isDemoted := map[string]bool{}
	for i := range s.Columns {
		if s.Columns[i].Type != demoted.Columns[i].Type {
			isDemoted[s.Columns[i].Name] = true
		}
	}

	r.Columns = make([]Column, len(plan.Columns))
	for i, c := range plan.Columns {
		r.Columns[i] = Column{
			Key:         c.Key,
			Name:        c.Name,
			Type:        string(c.Type),
			Observed:    c.Tags.String(),
			Occurrences: keys[i].Occurrences,
			Included:    c.Included,
			Reason:      c.Reason,
			Demoted:     isDemoted[c.Name],
		}
	}

	counts := map[string]int{}
	for _, rec := range values {
		for _, elem := range schema.Unwrap(rec) {
			r.Elements++
			if pred.Match(elem) {
				r.Matching++
			}
			if plan.FilterKey == nil {
				continue
			}
			if v, ok := elem.Get(plan.FilterKey.Name); ok {
				counts[filterText(v)]++
			}
		}
	}
	if plan.FilterKey != nil {
		r.FilterKey = plan.FilterKey.Name
		for v, n := range counts {
			r.FilterValues = append(r.FilterValues, ValueCount{Value: v, Count: n})
		}
		sort.Slice(r.FilterValues, func(i, j int) bool {
			a, b := r.FilterValues[i], r.FilterValues[j]
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			return a.Value < b.Value
		})
	}

	if outcome == flatten.Ready && opts.Dialect.Name != "" {
		if stmt, err := opts.Dialect.CreateTable(demoted.TableDef()); err == nil {
			r.DDL = stmt
		}
	}
}

// filterText renders a filter key value the way the predicate compares it.
func filterText(v jsonvalue.Value) string {
	switch v.Kind() {
	case jsonvalue.String:
		s, _ := v.AsString()
		return s
	case jsonvalue.Number:
		n, _ := v.AsNumber()
		return n.String()
	default:
		return string(v.Raw())
	}
}
