package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stoewer/go-strcase"
)

// NormalizeKeys rewrites every snake_case object key in a JSON document to camelCase.
// When both spellings of a key are present the camelCase one is kept.
// Payloads are normalized once on receipt so the rest of the client only sees camelCase.
func NormalizeKeys(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}

	out, err := json.Marshal(normalizeValue(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	return out, nil
}

// Decode normalizes data and unmarshals it into v.
func Decode(data []byte, v any) error {
	normalized, err := NormalizeKeys(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, v)
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		// camelCase keys first so they win over their snake_case twins
		for k, val := range t {
			if !strings.Contains(k, "_") {
				out[k] = normalizeValue(val)
			}
		}
		for k, val := range t {
			if !strings.Contains(k, "_") {
				continue
			}
			ck := SnakeToCamel(k)
			if _, exists := out[ck]; exists {
				continue
			}
			out[ck] = normalizeValue(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}

// SnakeToCamel converts course_id to courseId. Keys with a leading underscore are returned unchanged.
func SnakeToCamel(s string) string {
	if s == "" || strings.HasPrefix(s, "_") {
		return s
	}
	return strcase.LowerCamelCase(s)
}
