package flatten

import (
	"context"
	"encoding/json"
	"strconv"

	"pushdown/internal/jsonvalue"
	"pushdown/internal/schema"
)

// Coerce converts v to the Go value stored for a column of type t: int64 or
// float64 for Number, bool, string, and json.RawMessage for Opaque. JSON
// null becomes nil. When v cannot be represented as t, Coerce returns the
// value as json.RawMessage and ok=false.
func Coerce(v jsonvalue.Value, t schema.Type) (cell any, ok bool) {
	if v.IsNull() {
		return nil, true
	}
	switch t {
	case schema.Number:
		n, isNum := v.AsNumber()
		if !isNum {
			break
		}
		if v.IsIntegral() {
			if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
				return i, true
			}
		}
		if f, err := strconv.ParseFloat(string(n), 64); err == nil {
			return f, true
		}
	case schema.Boolean:
		if b, isBool := v.AsBool(); isBool {
			return b, true
		}
	case schema.Varchar:
		if s, isStr := v.AsString(); isStr {
			return s, true
		}
	case schema.Opaque:
		return json.RawMessage(v.Raw()), true
	}
	return json.RawMessage(v.Raw()), false
}

// Project builds the row for one unwrapped element. Missing keys yield nil.
// fallbacks counts cells that could not be coerced and were passed through
// as raw JSON.
func (s Schema) Project(elem jsonvalue.Value) (row []any, fallbacks int) {
	row = make([]any, len(s.Columns))
	for i, c := range s.Columns {
		v, ok := elem.Get(c.Key)
		if !ok {
			continue
		}
		cell, ok := Coerce(v, c.Type)
		if !ok {
			fallbacks++
		}
		row[i] = cell
	}
	return row, fallbacks
}

// Stats summarizes one population pass.
type Stats struct {
	// Elements counts unwrapped elements seen.
	Elements int64
	// Kept counts rows sent downstream.
	Kept int64
	// Filtered counts elements rejected by the predicate.
	Filtered int64
	// Fallbacks counts cells stored as raw JSON.
	Fallbacks int64
}

// Populate projects every unwrapped element of records through s, keeps
// those the predicate accepts and sends the rows to out. It closes out
// when done and returns ctx.Err() if canceled.
func Populate(ctx context.Context, records []jsonvalue.Value, s Schema, pred *Predicate, out chan<- []any) (Stats, error) {
	defer close(out)

	var st Stats
	for _, rec := range records {
		for _, elem := range schema.Unwrap(rec) {
			st.Elements++
			if !pred.Match(elem) {
				st.Filtered++
				continue
			}
			row, fb := s.Project(elem)
			st.Fallbacks += int64(fb)

			select {
			case out <- row:
				st.Kept++
			case <-ctx.Done():
				return st, ctx.Err()
			}
		}
	}
	return st, nil
}
