package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidArgument reports bindings that are not a key/value mapping.
var ErrInvalidArgument = errors.New("invalid argument")

// scopeSeparator separates a source prefix from a variable name, as in
// "input:description".
const scopeSeparator = ":"

// Variables maps placeholder names to values. Keys may be scoped
// ("<source>:<name>") or unscoped.
type Variables map[string]any

// DecodeVariables decodes a JSON object into Variables. Scalars become
// string, json.Number, bool or nil. Nested objects and arrays are kept as
// json.RawMessage so their key order survives serialization.
func DecodeVariables(data []byte) (Variables, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: variables must be a JSON object", ErrInvalidArgument)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	vars := make(Variables, len(fields))
	for key, raw := range fields {
		value, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidArgument, key, err)
		}
		vars[key] = value
	}
	return vars, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return json.RawMessage(bytes.Clone(trimmed)), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// expandScopes returns a copy of vars in which every scoped key "p:n" is also
// reachable as "n". An unscoped key already present in vars is never
// overwritten. When several scoped keys share a bare name, they are applied
// in lexicographic key order and the last one wins.
func expandScopes(vars Variables) Variables {
	out := make(Variables, len(vars))
	var scoped []string
	for key, value := range vars {
		out[key] = value
		if strings.Contains(key, scopeSeparator) {
			scoped = append(scoped, key)
		}
	}
	sort.Strings(scoped)

	for _, key := range scoped {
		alias := key[strings.LastIndex(key, scopeSeparator)+len(scopeSeparator):]
		if alias == "" {
			continue
		}
		if _, exists := vars[alias]; exists {
			continue
		}
		out[alias] = vars[key]
	}
	return out
}
