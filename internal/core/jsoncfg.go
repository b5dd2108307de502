// internal/core/jsoncfg.go
//
// The request-scoped json_cfg mapping.
//
// Merge rule
// ----------
// Only truthy values, boolean false, and numeric zero are merged.  The
// empty string, null, and empty arrays / objects count as "not provided"
// and are dropped.  This lets a client send an explicit `false`.
//
// Numbers are decoded as json.Number so integer ids round-trip exactly.

package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JSONCfg maps string keys to JSON-safe values.
type JSONCfg map[string]any

// Keep reports whether v survives a json_cfg merge.
func Keep(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return true
	case string:
		return t != ""
	case json.Number, int, int64, float64:
		return true
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// Merge copies every kept entry of src into c, overwriting existing keys.
func (c JSONCfg) Merge(src map[string]any) {
	for k, v := range src {
		if Keep(v) {
			c[k] = v
		}
	}
}

// MergeJSON decodes raw as a JSON object and merges it.  Blank input is a
// no-op.
func (c JSONCfg) MergeJSON(raw string) error {
	if raw == "" {
		return nil
	}
	m, err := DecodeObject([]byte(raw))
	if err != nil {
		return fmt.Errorf("json_cfg: %w", err)
	}
	c.Merge(m)
	return nil
}

// String returns c[key] rendered as a string, or "".
func (c JSONCfg) String(key string) string {
	switch v := c[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns c[key] as an int.  Numeric strings are accepted.
func (c JSONCfg) Int(key string) (int, bool) {
	switch v := c[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// Bool returns c[key] as a bool; absent or non-bool is false.
func (c JSONCfg) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Encode serializes the mapping for embedding in a page.
func (c JSONCfg) Encode() (string, error) {
	b, err := json.Marshal(map[string]any(c))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeObject parses a JSON object using json.Number for numerics.
func DecodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
