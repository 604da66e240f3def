// Package template renders prompt templates from event data.
//
// A template contains placeholders of the form {{name}} where name matches
// [A-Za-z0-9_:]+. Rendering replaces every placeholder whose name is bound
// with the serialized value and leaves unknown placeholders untouched. It is
// a single pass: text inserted from a value is never scanned again, so a
// value containing "{{x}}" appears verbatim in the output.
//
// Scoped keys such as "input:description" are also reachable by their bare
// name ("description") unless an unscoped key of that name is bound.
package template

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Yates-Labs/stepcall/internal/logging"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_:]+)\}\}`)

// Renderer substitutes variables into templates. It holds no per-call state
// and is safe for concurrent use.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a renderer that reports substitutions, missing
// variables and serialization fallbacks to logger. A nil logger discards them.
func NewRenderer(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logging.OrNop(logger)}
}

// Render substitutes vars into tmpl using slog.Default for diagnostics.
func Render(tmpl string, vars Variables) string {
	return NewRenderer(slog.Default()).Render(tmpl, vars)
}

// Render returns tmpl with every bound placeholder replaced. vars is not
// modified.
func (r *Renderer) Render(tmpl string, vars Variables) string {
	matches := placeholderPattern.FindAllStringSubmatchIndex(tmpl, -1)
	if len(matches) == 0 {
		return tmpl
	}

	scope := expandScopes(vars)

	var b strings.Builder
	b.Grow(len(tmpl))
	last := 0
	for _, m := range matches {
		b.WriteString(tmpl[last:m[0]])

		name := tmpl[m[2]:m[3]]
		if value, ok := scope[name]; ok {
			r.logger.Debug("substituting variable", "name", name)
			b.WriteString(r.Serialize(value))
		} else {
			r.logger.Warn("no value provided for variable", "name", name)
			b.WriteString(tmpl[m[0]:m[1]])
		}
		last = m[1]
	}
	b.WriteString(tmpl[last:])

	return b.String()
}

// RenderJSON decodes event as a JSON object and renders tmpl with it.
// It fails with ErrInvalidArgument if event is not an object.
func (r *Renderer) RenderJSON(tmpl string, event []byte) (string, error) {
	vars, err := DecodeVariables(event)
	if err != nil {
		return "", fmt.Errorf("decode variables: %w", err)
	}
	return r.Render(tmpl, vars), nil
}

// Placeholders returns the distinct placeholder names in tmpl in order of
// first appearance.
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// Missing returns the placeholder names in tmpl that vars cannot resolve,
// taking scoped aliases into account.
func Missing(tmpl string, vars Variables) []string {
	scope := expandScopes(vars)
	var missing []string
	for _, name := range Placeholders(tmpl) {
		if _, ok := scope[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
