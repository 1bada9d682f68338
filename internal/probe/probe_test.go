package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pushdown/internal/datasource"
	"pushdown/internal/ddl"
	"pushdown/internal/flatten"
	"pushdown/internal/ingest"
	"pushdown/internal/jsonvalue"
)

var testDialect = ddl.Dialect{
	Name:  "test",
	Quote: ddl.DoubleQuote,
	Types: map[string]string{
		ddl.KindNumber:  "NUMERIC",
		ddl.KindBoolean: "BOOLEAN",
		ddl.KindVarchar: "TEXT",
		ddl.KindOpaque:  "JSONB",
	},
}

func fetcher(t *testing.T, bodies ...string) (datasource.PageFetcher, *int) {
	t.Helper()
	calls := 0
	return datasource.FetcherFunc(func(_ context.Context, page, _ int) (datasource.Page, error) {
		calls++
		if page > len(bodies) {
			return datasource.Page{Body: jsonvalue.NullValue()}, nil
		}
		v, err := jsonvalue.Parse([]byte(bodies[page-1]))
		if err != nil {
			t.Errorf("parse: %v", err)
		}
		return datasource.Page{Body: v}, nil
	}), &calls
}

func TestRun_ReportsPlan(t *testing.T) {
	t.Parallel()

	f, calls := fetcher(t,
		`{"data":[{"companyCode":"GXLLC","name":"A","salary":1,"n":1},{"companyCode":"ACME","name":"B","n":1e999}]}`,
		`{"data":[{"companyCode":"GXLLC","name":"C"}]}`,
		`{"data":[{"companyCode":"ZZZ"}]}`,
	)
	res, err := Run(context.Background(), f, Options{
		Pages:    2,
		PageSize: 2,
		Table:    "hr.employees",
		Filter:   flatten.FilterOptions{Targets: []string{"GXLLC"}},
		Dialect:  testDialect,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if *calls != 2 || res.Pages != 2 || res.Records != 3 || res.Exhausted {
		t.Fatalf("calls=%d result=%+v", *calls, res)
	}
	if res.Outcome != "ready" || res.FilterKey != "companyCode" || res.Predicate != "COMPANYCODE = 'GXLLC'" {
		t.Fatalf("result = %+v", res)
	}
	if res.Elements != 3 || res.Matching != 2 {
		t.Fatalf("elements=%d matching=%d", res.Elements, res.Matching)
	}
	if len(res.FilterValues) != 2 || res.FilterValues[0] != (ValueCount{Value: "GXLLC", Count: 2}) {
		t.Fatalf("filter values = %+v", res.FilterValues)
	}

	byName := map[string]Column{}
	for _, c := range res.Columns {
		byName[c.Name] = c
	}
	if c := byName["SALARY"]; c.Included || !strings.Contains(c.Reason, "SALARY") {
		t.Fatalf("SALARY = %+v", c)
	}
	if c := byName["N"]; c.Type != "NUMBER" || c.Observed != "integer|decimal" {
		t.Fatalf("N = %+v", c)
	}
	if c := byName["NAME"]; c.Occurrences != 3 || c.Type != "VARCHAR" {
		t.Fatalf("NAME = %+v", c)
	}

	// ACME's 1e999 is filtered out, so N keeps its numeric type.
	if byName["N"].Demoted {
		t.Fatal("N demoted by a filtered element")
	}
	want := "CREATE TABLE \"hr\".\"employees\" (\n  \"COMPANYCODE\" TEXT,\n  \"NAME\" TEXT,\n  \"N\" NUMERIC\n);"
	if res.DDL != want {
		t.Fatalf("DDL =\n%s\nwant\n%s", res.DDL, want)
	}
}

func TestRun_DemotedColumnInDDL(t *testing.T) {
	t.Parallel()

	f, _ := fetcher(t, `[{"n":1},{"n":1e999}]`)
	res, err := Run(context.Background(), f, Options{PageSize: 10, Table: "t", Dialect: testDialect})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Columns[0].Demoted || !strings.Contains(res.DDL, `"N" JSONB`) {
		t.Fatalf("columns=%+v ddl=%s", res.Columns, res.DDL)
	}
	if res.Predicate != "none" || res.FilterKey != "" {
		t.Fatalf("predicate = %q", res.Predicate)
	}
}

func TestRun_EmptySource(t *testing.T) {
	t.Parallel()

	f, _ := fetcher(t)
	res, err := Run(context.Background(), f, Options{PageSize: 10, Table: "t", Dialect: testDialect})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != "no_keys" || res.DDL != "" || !res.Exhausted || res.Records != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRun_FetchError(t *testing.T) {
	t.Parallel()

	f := datasource.FetcherFunc(func(context.Context, int, int) (datasource.Page, error) {
		return datasource.Page{}, errors.New("401")
	})
	_, err := Run(context.Background(), f, Options{PageSize: 10})
	if !ingest.IsFetchError(err) {
		t.Fatalf("err = %v", err)
	}
}
