package ddl

import (
	"strconv"
	"strings"
	"testing"
)

var testDialect = Dialect{
	Name:        "test",
	Quote:       DoubleQuote,
	IfNotExists: true,
	Types: map[string]string{
		KindNumber:  "NUMERIC",
		KindBoolean: "BOOLEAN",
		KindVarchar: "TEXT",
		KindOpaque:  "JSONB",
	},
	Placeholder: func(i int) string { return "$" + strconv.Itoa(i+1) },
}

func TestCreateTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", Kind: KindNumber}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "public.t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: " ", Kind: KindNumber}}},
			errContains: "column with empty name",
		},
		{
			name:        "unknown kind returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "x", Kind: "DATE"}}},
			errContains: `no SQL type for kind "DATE"`,
		},
		{
			name: "duplicate column returns error",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "A", Kind: KindNumber}, {Name: "A", Kind: KindVarchar},
			}},
			errContains: "duplicate column A",
		},
		{
			name: "logical kinds are mapped and identifiers quoted",
			def: TableDef{FQN: "public.employees", Columns: []ColumnDef{
				{Name: "EMPLOYEEID", Kind: KindNumber, Nullable: true},
				{Name: "ACTIVE", Kind: KindBoolean, Nullable: true},
				{Name: "FIRST_NAME", Kind: KindVarchar, Nullable: true},
				{Name: "ADDRESS", Kind: KindOpaque, Nullable: true},
				{Name: "LOADED", SQLType: "TIMESTAMPTZ", Nullable: false},
			}},
			wantSQL: "CREATE TABLE IF NOT EXISTS \"public\".\"employees\" (\n" +
				"  \"EMPLOYEEID\" NUMERIC,\n" +
				"  \"ACTIVE\" BOOLEAN,\n" +
				"  \"FIRST_NAME\" TEXT,\n" +
				"  \"ADDRESS\" JSONB,\n" +
				"  \"LOADED\" TIMESTAMPTZ NOT NULL\n);",
		},
		{
			name:    "embedded quotes are escaped",
			def:     TableDef{FQN: `we"ird`, Columns: []ColumnDef{{Name: `a"b`, Kind: "varchar", Nullable: true}}},
			wantSQL: "CREATE TABLE IF NOT EXISTS \"we\"\"ird\" (\n  \"a\"\"b\" TEXT\n);",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := testDialect.CreateTable(tt.def)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("CreateTable() error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateTable() unexpected error = %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("CreateTable() =\n%s\nwant:\n%s", got, tt.wantSQL)
			}
		})
	}
}

func TestDialect_Statements(t *testing.T) {
	t.Parallel()

	if got, want := testDialect.Insert("s.t", []string{"A", "B"}), `INSERT INTO "s"."t" ("A", "B") VALUES ($1, $2)`; got != want {
		t.Fatalf("Insert = %q, want %q", got, want)
	}
	if got, want := testDialect.DropTable("t"), `DROP TABLE IF EXISTS "t"`; got != want {
		t.Fatalf("DropTable = %q, want %q", got, want)
	}
	if got, want := testDialect.Count("a..b"), `SELECT COUNT(*) FROM "a"."b"`; got != want {
		t.Fatalf("Count = %q, want %q", got, want)
	}

	ms := Dialect{Name: "ms", Quote: Bracket}
	if got, want := ms.Insert("dbo.t", []string{"x]y"}), "INSERT INTO [dbo].[t] ([x]]y]) VALUES (?)"; got != want {
		t.Fatalf("bracket Insert = %q, want %q", got, want)
	}
	my := Dialect{Name: "my", Quote: Backtick, Placeholder: QuestionMark}
	if got, want := my.QuoteFQN("db.t`x"), "`db`.`t``x`"; got != want {
		t.Fatalf("backtick QuoteFQN = %q, want %q", got, want)
	}
}

func TestTableDef_ColumnNames(t *testing.T) {
	t.Parallel()

	td := TableDef{Columns: []ColumnDef{{Name: "A"}, {Name: "B"}}}
	if got := strings.Join(td.ColumnNames(), ","); got != "A,B" {
		t.Fatalf("ColumnNames = %q", got)
	}
}

var benchmarkSink string

func BenchmarkCreateTable_WideSchema(b *testing.B) {
	cols := make([]ColumnDef, 0, 64)
	for i := 0; i < 64; i++ {
		cols = append(cols, ColumnDef{Name: "COL_" + strconv.Itoa(i), Kind: KindVarchar, Nullable: true})
	}
	def := TableDef{FQN: "wide", Columns: cols}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sql, err := testDialect.CreateTable(def)
		if err != nil {
			b.Fatalf("CreateTable() error = %v", err)
		}
		benchmarkSink = sql
	}
}
