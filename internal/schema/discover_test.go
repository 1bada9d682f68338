package schema

import (
	"testing"

	"pushdown/internal/jsonvalue"
)

func mustParse(t *testing.T, docs ...string) []jsonvalue.Value {
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

func names(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Name
	}
	return out
}

func TestDiscover_UnionOfShapes(t *testing.T) {
	t.Parallel()

	keys := Discover(mustParse(t, `{"a":1}`, `{"b":2}`))
	got := names(keys)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("keys = %v, want [a b]", got)
	}
}

func TestDiscover_UnwrapsOneArrayLevel(t *testing.T) {
	t.Parallel()

	keys := Discover(mustParse(t,
		`[{"id":1,"name":"x"},{"id":2,"dept":"ops"}]`,
		`{"id":3}`,
		`[[{"deep":1}]]`,
		`"scalar"`,
	))
	got := names(keys)
	want := []string{"id", "name", "dept"}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
	if keys[0].Occurrences != 3 || keys[0].Type != Number {
		t.Fatalf("id = %+v", keys[0])
	}
}

func TestDiscover_StableOrder(t *testing.T) {
	t.Parallel()

	recs := mustParse(t, `{"z":1,"m":"a"}`, `{"a":true,"z":2}`)
	first := names(Discover(recs))
	for i := 0; i < 10; i++ {
		again := names(Discover(recs))
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d order = %v, want %v", i, again, first)
			}
		}
	}
}

func TestDiscover_TypeReduction(t *testing.T) {
	t.Parallel()

	keys := Discover(mustParse(t,
		`{"n":1,"x":1,"flag":true,"s":"a","nul":null,"obj":{"k":1},"arr":[1],"dec":1.5,"opt":null}`,
		`{"n":2.25,"x":"one","flag":false,"s":null,"nul":null,"obj":{"k":2},"arr":[],"dec":2,"opt":"v"}`,
	))
	want := map[string]Type{
		"n":    Number,
		"x":    Opaque,
		"flag": Boolean,
		"s":    Varchar,
		"nul":  Opaque,
		"obj":  Opaque,
		"arr":  Opaque,
		"dec":  Number,
		"opt":  Varchar,
	}
	for _, k := range keys {
		if k.Type != want[k.Name] {
			t.Errorf("%s: Type = %s (tags %s), want %s", k.Name, k.Type, k.Tags, want[k.Name])
		}
	}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
}

func TestReduce_OrderIndependent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tags []Tag
		want Type
	}{
		{[]Tag{TagInteger, TagString}, Opaque},
		{[]Tag{TagString, TagInteger}, Opaque},
		{[]Tag{TagInteger, TagDecimal, TagNull}, Number},
		{[]Tag{TagNull}, Opaque},
		{nil, Opaque},
		{[]Tag{TagBoolean, TagObject}, Opaque},
		{[]Tag{TagBoolean}, Boolean},
	}
	for _, tc := range cases {
		var s TagSet
		for _, tg := range tc.tags {
			s |= TagSet(tg)
		}
		if got := Reduce(s); got != tc.want {
			t.Errorf("Reduce(%s) = %s, want %s", s, got, tc.want)
		}
	}
}

func TestTagSet_String(t *testing.T) {
	t.Parallel()

	s := TagSet(TagInteger) | TagSet(TagNull)
	if got := s.String(); got != "null|integer" {
		t.Fatalf("String() = %q", got)
	}
	if got := TagSet(0).String(); got != "none" {
		t.Fatalf("empty String() = %q", got)
	}
}
