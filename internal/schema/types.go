// Package schema discovers the column shape of landed JSON: the union of
// top-level keys across every record and one representative type per key.
package schema

import "strings"

// Type is the reduced column type of a discovered key.
type Type string

const (
	Number  Type = "NUMBER"
	Boolean Type = "BOOLEAN"
	Varchar Type = "VARCHAR"
	// Opaque values are stored as an untyped structured payload.
	Opaque Type = "OPAQUE"
)

// Tag is the type observed for one occurrence of a key.
type Tag uint8

const (
	TagNull Tag = 1 << iota
	TagBoolean
	TagInteger
	TagDecimal
	TagString
	TagArray
	TagObject
)

var tagNames = []struct {
	tag  Tag
	name string
}{
	{TagNull, "null"},
	{TagBoolean, "boolean"},
	{TagInteger, "integer"},
	{TagDecimal, "decimal"},
	{TagString, "string"},
	{TagArray, "array"},
	{TagObject, "object"},
}

// TagSet is the set of tags observed for a key.
type TagSet uint8

// Has reports whether t was observed.
func (s TagSet) Has(t Tag) bool { return s&TagSet(t) != 0 }

func (s TagSet) String() string {
	var parts []string
	for _, tn := range tagNames {
		if s.Has(tn.tag) {
			parts = append(parts, tn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Reduce maps a tag set to one Type. Nulls are ignored. When every non-null
// occurrence maps to the same scalar type, that type wins. Null-only,
// array, object and mixed keys reduce to Opaque. The result does not depend
// on the order occurrences were observed in.
func Reduce(s TagSet) Type {
	if s.Has(TagArray) || s.Has(TagObject) {
		return Opaque
	}
	var (
		found Type
		n     int
	)
	if s.Has(TagInteger) || s.Has(TagDecimal) {
		found, n = Number, n+1
	}
	if s.Has(TagBoolean) {
		found, n = Boolean, n+1
	}
	if s.Has(TagString) {
		found, n = Varchar, n+1
	}
	if n != 1 {
		return Opaque
	}
	return found
}
