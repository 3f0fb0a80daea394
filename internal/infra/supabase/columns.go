package supabase

import (
	"encoding/json"
	"strings"
	"unicode"
)

// Tables use snake_case columns; entities use camelCase JSON. Only
// top-level keys are renamed; jsonb columns keep their inner shape.

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func camelCase(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// toColumns encodes v as a column map.
func toColumns(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	cols := make(map[string]any, len(fields))
	for k, v := range fields {
		cols[snakeCase(k)] = v
	}
	return cols, nil
}

// patchColumns renames the keys of a patch.
func patchColumns(patch map[string]any) map[string]any {
	cols := make(map[string]any, len(patch))
	for k, v := range patch {
		cols[snakeCase(k)] = v
	}
	return cols
}

// decodeRows decodes a PostgREST array of rows into T values.
func decodeRows[T any](body []byte) ([]T, error) {
	if len(body) == 0 {
		return []T{}, nil
	}
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		fields := make(map[string]json.RawMessage, len(row))
		for k, v := range row {
			fields[camelCase(k)] = v
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
