package schema

import "pushdown/internal/jsonvalue"

// Key is one distinct top-level field name seen across the landing set.
type Key struct {
	Name string
	Tags TagSet
	Type Type

	// Occurrences counts elements carrying the key, nulls included.
	Occurrences int
}

// TagOf classifies one JSON value.
func TagOf(v jsonvalue.Value) Tag {
	switch v.Kind() {
	case jsonvalue.Bool:
		return TagBoolean
	case jsonvalue.Number:
		if v.IsIntegral() {
			return TagInteger
		}
		return TagDecimal
	case jsonvalue.String:
		return TagString
	case jsonvalue.Array:
		return TagArray
	case jsonvalue.Object:
		return TagObject
	default:
		return TagNull
	}
}

// Unwrap removes exactly one level of array nesting: an array record yields
// its elements, anything else yields itself.
func Unwrap(v jsonvalue.Value) []jsonvalue.Value {
	if v.Kind() == jsonvalue.Array {
		return v.Elements()
	}
	return []jsonvalue.Value{v}
}

// Discover scans every record, after one level of array unwrapping, and
// returns the union of object keys in first-seen order with their reduced
// types. Elements that are not objects contribute no keys.
func Discover(records []jsonvalue.Value) []Key {
	idx := map[string]int{}
	var keys []Key

	for _, rec := range records {
		for _, elem := range Unwrap(rec) {
			for _, f := range elem.Fields() {
				i, ok := idx[f.Key]
				if !ok {
					i = len(keys)
					idx[f.Key] = i
					keys = append(keys, Key{Name: f.Key})
				}
				keys[i].Tags |= TagSet(TagOf(f.Value))
				keys[i].Occurrences++
			}
		}
	}

	for i := range keys {
		keys[i].Type = Reduce(keys[i].Tags)
	}
	return keys
}
