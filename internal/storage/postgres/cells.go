package postgres

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Postgres cannot store NUL in TEXT, nor the \u0000 escape in JSONB. Both
// are written as U+FFFD.
const replacement = "�"

var nulEscape = []byte(`\u0000`)

// scrubRows returns rows with NUL removed from every text and JSON cell.
// Rows without NUL are passed through unchanged.
func scrubRows(rows [][]any) [][]any {
	var out [][]any
	for i, row := range rows {
		clean, changed := scrubRow(row)
		if !changed {
			if out != nil {
				out[i] = row
			}
			continue
		}
		if out == nil {
			out = make([][]any, len(rows))
			copy(out, rows[:i])
		}
		out[i] = clean
	}
	if out == nil {
		return rows
	}
	return out
}

func scrubRow(row []any) ([]any, bool) {
	var out []any
	for i, v := range row {
		var repl any
		switch x := v.(type) {
		case string:
			if !strings.ContainsRune(x, 0) {
				continue
			}
			repl = strings.ReplaceAll(x, "\x00", replacement)
		case json.RawMessage:
			if !bytes.Contains(x, nulEscape) {
				continue
			}
			repl = json.RawMessage(scrubJSON(x))
		default:
			continue
		}
		if out == nil {
			out = append([]any(nil), row...)
		}
		out[i] = repl
	}
	if out == nil {
		return row, false
	}
	return out, true
}

// scrubJSON rewrites \u0000 escapes in raw JSON. An escaped backslash
// followed by u0000 is literal text and stays.
func scrubJSON(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			out = append(out, c)
			continue
		}
		if bytes.HasPrefix(raw[i:], nulEscape) {
			out = append(out, `�`...)
			i += len(nulEscape) - 1
			continue
		}
		out = append(out, c, raw[i+1])
		i++
	}
	return out
}
