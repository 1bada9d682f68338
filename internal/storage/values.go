package storage

import "encoding/json"

// TextCells returns row with json.RawMessage cells replaced by their string
// form, for drivers that have no JSON parameter type. The input row is not
// modified when it holds no raw cells.
func TextCells(row []any) []any {
	var out []any
	for i, v := range row {
		raw, ok := v.(json.RawMessage)
		if !ok {
			continue
		}
		if out == nil {
			out = append([]any(nil), row...)
		}
		out[i] = string(raw)
	}
	if out == nil {
		return row
	}
	return out
}

// PlainCells is TextCells plus int64 widened to float64, for backends whose
// NUMBER columns are double precision and whose bulk paths do not convert.
func PlainCells(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case json.RawMessage:
			out[i] = string(x)
		case int64:
			out[i] = float64(x)
		default:
			out[i] = v
		}
	}
	return out
}
