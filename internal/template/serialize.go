package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
)

// Serialize converts a bound value to the text inserted into a template.
// Diagnostics go to slog.Default.
//
// Scalars are converted directly: strings verbatim, bools as true/false,
// numbers in plain decimal, nil as null. Slices, arrays, maps and
// json.RawMessage are written as compact JSON without HTML escaping. A
// collection that cannot be encoded falls back to fmt.Sprint.
func Serialize(v any) string {
	return NewRenderer(slog.Default()).Serialize(v)
}

// Serialize converts v like the package-level Serialize, logging fallbacks
// to the renderer's logger.
func (r *Renderer) Serialize(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.RawMessage:
		var buf bytes.Buffer
		if err := json.Compact(&buf, val); err != nil {
			r.logger.Warn("serialization fallback", "type", "json.RawMessage", "error", err)
			return string(val)
		}
		return buf.String()
	case []byte:
		return string(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		s, err := encodeCompact(v)
		if err != nil {
			r.logger.Warn("serialization fallback", "type", rv.Type().String(), "error", err)
			return fmt.Sprint(v)
		}
		return s
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	}

	return fmt.Sprint(v)
}

func encodeCompact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
