package flatten

import (
	"context"
	"encoding/json"
	"testing"

	"pushdown/internal/jsonvalue"
	"pushdown/internal/policy"
	"pushdown/internal/schema"
)

func parseAll(t *testing.T, docs ...string) []jsonvalue.Value {
	t.Helper()
	out := make([]jsonvalue.Value, 0, len(docs))
	for _, d := range docs {
		v, err := jsonvalue.Parse([]byte(d))
		if err != nil {
			t.Fatalf("parse %q: %v", d, err)
		}
		out = append(out, v)
	}
	return out
}

// plan runs discovery and classification the way the pipeline does.
func plan(recs []jsonvalue.Value) policy.Plan {
	return policy.New(policy.Options{}).Classify(schema.Discover(recs))
}

func collect(t *testing.T, recs []jsonvalue.Value, s Schema, pred *Predicate) ([][]any, Stats) {
	t.Helper()
	out := make(chan []any, 16)
	var rows [][]any
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range out {
			rows = append(rows, r)
		}
	}()
	st, err := Populate(context.Background(), recs, s, pred, out)
	<-done
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	return rows, st
}

func TestRowFilter_KeepsOnlyTarget(t *testing.T) {
	t.Parallel()

	recs := parseAll(t, `[{"companyCode":"GXLLC","x":1},{"companyCode":"OTHER","x":2}]`)
	s, pred, outcome := Build("flat", plan(recs), FilterOptions{Targets: []string{"GXLLC"}})
	if outcome != Ready {
		t.Fatalf("outcome = %v", outcome)
	}
	if pred == nil || pred.Column != "COMPANYCODE" {
		t.Fatalf("pred = %+v, want filter on COMPANYCODE", pred)
	}
	if got := pred.Describe(); got != "COMPANYCODE = 'GXLLC'" {
		t.Fatalf("Describe = %q", got)
	}

	rows, st := collect(t, recs, s, pred)
	if len(rows) != 1 || st.Kept != 1 || st.Filtered != 1 || st.Elements != 2 {
		t.Fatalf("rows=%v stats=%+v", rows, st)
	}
	names := s.Names()
	if names[0] != "COMPANYCODE" || names[1] != "X" {
		t.Fatalf("names = %v", names)
	}
	if rows[0][1] != int64(1) {
		t.Fatalf("X = %#v, want int64(1)", rows[0][1])
	}
}

func TestNoFilterKey_KeepsEveryElement(t *testing.T) {
	t.Parallel()

	recs := parseAll(t,
		`[{"a":1},{"b":"x"},7]`,
		`{"a":2,"c":true}`,
		`[]`,
	)
	s, pred, outcome := Build("flat", plan(recs), FilterOptions{Targets: []string{"GXLLC"}})
	if outcome != Ready || pred != nil {
		t.Fatalf("outcome=%v pred=%+v", outcome, pred)
	}
	rows, st := collect(t, recs, s, pred)
	if len(rows) != 4 || st.Elements != 4 {
		t.Fatalf("rows=%d stats=%+v, want 4 rows", len(rows), st)
	}
	// The scalar element projects to an all-null row.
	for _, cell := range rows[2] {
		if cell != nil {
			t.Fatalf("scalar element row = %v", rows[2])
		}
	}
}

func TestBuild_EmptyDiscovery(t *testing.T) {
	t.Parallel()

	_, pred, outcome := Build("flat", plan(nil), FilterOptions{})
	if outcome != NoKeys || pred != nil {
		t.Fatalf("outcome=%v pred=%v, want NoKeys", outcome, pred)
	}
	_, _, outcome = Build("flat", plan(parseAll(t, `[1,2]`, `"x"`)), FilterOptions{})
	if outcome != NoKeys {
		t.Fatalf("non-object records: outcome=%v, want NoKeys", outcome)
	}
}

func TestBuild_AllExcluded(t *testing.T) {
	t.Parallel()

	recs := parseAll(t, `{"salary":1,"payRate":2}`)
	s, _, outcome := Build("flat", plan(recs), FilterOptions{})
	if outcome != AllExcluded || len(s.Columns) != 0 {
		t.Fatalf("outcome=%v cols=%v", outcome, s.Columns)
	}
}

func TestBuild_ExcludedColumnsNeverProjected(t *testing.T) {
	t.Parallel()

	recs := parseAll(t, `{"id":1,"annualSalary":100000,"hourlyRate":50.5}`)
	s, _, _ := Build("flat", plan(recs), FilterOptions{Disabled: true})
	if got := s.Names(); len(got) != 1 || got[0] != "ID" {
		t.Fatalf("names = %v, want [ID]", got)
	}
	td := s.TableDef()
	if td.FQN != "flat" || td.Columns[0].Kind != "NUMBER" || !td.Columns[0].Nullable {
		t.Fatalf("TableDef = %+v", td)
	}
}

func TestBuild_FilterDisabled(t *testing.T) {
	t.Parallel()

	recs := parseAll(t, `{"companyCode":"A"}`)
	_, pred, _ := Build("flat", plan(recs), FilterOptions{Disabled: true, Targets: []string{"A"}})
	if pred != nil {
		t.Fatalf("pred = %+v, want nil", pred)
	}
}

func TestPredicate_SetMembershipAndNumbers(t *testing.T) {
	t.Parallel()

	p := &Predicate{Key: "companyCode", Column: "COMPANYCODE", Targets: []string{"A", "B'C", "42"}}
	for doc, want := range map[string]bool{
		`{"companyCode":"A"}`:   true,
		`{"companyCode":"B'C"}`: true,
		`{"companyCode":42}`:    true,
		`{"companyCode":"Z"}`:   false,
		`{"companyCode":null}`:  false,
		`{"companyCode":["A"]}`: false,
		`{"other":"A"}`:         false,
		`"A"`:                   false,
	} {
		v := parseAll(t, doc)[0]
		if got := p.Match(v); got != want {
			t.Errorf("Match(%s) = %v, want %v", doc, got, want)
		}
	}
	if got := p.Describe(); got != "COMPANYCODE IN ('A', 'B''C', '42')" {
		t.Fatalf("Describe = %q", got)
	}
	var none *Predicate
	if !none.Match(jsonvalue.NullValue()) || none.Describe() != "none" {
		t.Fatalf("nil predicate should keep everything")
	}
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	cases := []struct {
		doc    string
		typ    schema.Type
		want   any
		wantOK bool
	}{
		{`12`, schema.Number, int64(12), true},
		{`-3.5`, schema.Number, float64(-3.5), true},
		{`12345678901234567890`, schema.Number, float64(12345678901234567890), true},
		{`true`, schema.Boolean, true, true},
		{`"hi"`, schema.Varchar, "hi", true},
		{`null`, schema.Number, nil, true},
		{`"12"`, schema.Number, json.RawMessage(`"12"`), false},
		{`1`, schema.Boolean, json.RawMessage(`1`), false},
		{`1e999`, schema.Number, json.RawMessage(`1e999`), false},
	}
	for _, tc := range cases {
		v := parseAll(t, tc.doc)[0]
		got, ok := Coerce(v, tc.typ)
		if ok != tc.wantOK {
			t.Errorf("Coerce(%s, %s) ok = %v, want %v", tc.doc, tc.typ, ok, tc.wantOK)
		}
		if raw, isRaw := tc.want.(json.RawMessage); isRaw {
			gotRaw, _ := got.(json.RawMessage)
			if string(gotRaw) != string(raw) {
				t.Errorf("Coerce(%s, %s) = %#v, want %s", tc.doc, tc.typ, got, raw)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("Coerce(%s, %s) = %#v, want %#v", tc.doc, tc.typ, got, tc.want)
		}
	}
}

func TestCoerce_OpaquePassesStructureThrough(t *testing.T) {
	t.Parallel()

	v := parseAll(t, `{"addr":{"city":"Brno","zip":[6,0,2]}}`)[0]
	inner, _ := v.Get("addr")
	got, ok := Coerce(inner, schema.Opaque)
	raw, isRaw := got.(json.RawMessage)
	if !ok || !isRaw || string(raw) != `{"city":"Brno","zip":[6,0,2]}` {
		t.Fatalf("Coerce opaque = %#v ok=%v", got, ok)
	}
}

func TestDemote_UnrepresentableNumberBecomesOpaque(t *testing.T) {
	t.Parallel()

	recs := parseAll(t, `[{"id":1,"big":1},{"id":2,"big":1e999}]`)
	s, pred, _ := Build("flat", plan(recs), FilterOptions{})
	if s.Columns[1].Type != schema.Number {
		t.Fatalf("big should infer NUMBER, got %s", s.Columns[1].Type)
	}

	demoted, cells := s.Demote(recs, pred)
	if cells != 1 || demoted.Columns[1].Type != schema.Opaque || demoted.Columns[0].Type != schema.Number {
		t.Fatalf("Demote cells=%d cols=%+v", cells, demoted.Columns)
	}
	if s.Columns[1].Type != schema.Number {
		t.Fatalf("Demote mutated the input schema")
	}

	rows, st := collect(t, recs, demoted, pred)
	if st.Fallbacks != 0 || len(rows) != 2 {
		t.Fatalf("stats = %+v", st)
	}
	if raw, _ := rows[1][1].(json.RawMessage); string(raw) != "1e999" {
		t.Fatalf("big cell = %#v", rows[1][1])
	}
}

func TestProject_CountsFallbacks(t *testing.T) {
	t.Parallel()

	s := Schema{Columns: []Column{{Name: "N", Key: "n", Type: schema.Number}, {Name: "M", Key: "m", Type: schema.Varchar}}}
	row, fb := s.Project(parseAll(t, `{"n":"oops"}`)[0])
	if fb != 1 || row[1] != nil {
		t.Fatalf("row=%v fallbacks=%d", row, fb)
	}
}

func TestPopulate_Canceled(t *testing.T) {
	t.Parallel()

	recs := parseAll(t, `[{"a":1},{"a":2}]`)
	s, _, _ := Build("flat", plan(recs), FilterOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan []any) // unbuffered and never drained
	_, err := Populate(ctx, recs, s, nil, out)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if _, open := <-out; open {
		t.Fatalf("out should be closed")
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	if Ready.String() != "ready" || NoKeys.String() != "no_keys" || AllExcluded.String() != "all_excluded" {
		t.Fatalf("unexpected outcome strings")
	}
}
