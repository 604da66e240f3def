package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer() (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewRenderer(logger), &buf
}

func TestRender_NoPlaceholders(t *testing.T) {
	r, _ := newTestRenderer()

	templates := []string{
		"",
		"plain text",
		"{single}",
		"{{ spaced }}",
		"{{with-dash}}",
		"{{}}",
		"{{unterminated",
	}
	for _, tmpl := range templates {
		assert.Equal(t, tmpl, r.Render(tmpl, Variables{"spaced": "x", "single": "y"}), "template %q", tmpl)
	}
}

func TestRender_UnscopedVariable(t *testing.T) {
	r, _ := newTestRenderer()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"int", 3, "3"},
		{"float", 2.5, "2.5"},
		{"bool", true, "true"},
		{"string", "hello", "hello"},
		{"slice", []any{1, 2}, "[1,2]"},
		{"map", map[string]any{"a": 1}, `{"a":1}`},
		{"array", [2]string{"x", "y"}, `["x","y"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Render("{{n}}", Variables{"n": tt.value})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, r.Serialize(tt.value), got)
		})
	}
}

func TestRender_ScopedAlias(t *testing.T) {
	r, _ := newTestRenderer()

	assert.Equal(t, "v", r.Render("{{n}}", Variables{"p:n": "v"}))
	assert.Equal(t, "v", r.Render("{{p:n}}", Variables{"p:n": "v"}))
	assert.Equal(t, "deep", r.Render("{{name}}", Variables{"a:b:name": "deep"}))
}

func TestRender_AliasDoesNotOverrideUnscoped(t *testing.T) {
	r, _ := newTestRenderer()

	vars := Variables{"n": "v1", "p:n": "v2"}
	assert.Equal(t, "v1", r.Render("{{n}}", vars))
	assert.Equal(t, "v2", r.Render("{{p:n}}", vars))
}

func TestRender_ConflictingScopesLastLexicographicWins(t *testing.T) {
	r, _ := newTestRenderer()

	vars := Variables{"b:x": "from-b", "a:x": "from-a", "c:y": "other"}
	for i := 0; i < 20; i++ {
		require.Equal(t, "from-b", r.Render("{{x}}", vars))
	}
}

func TestRender_DoesNotMutateCallerVariables(t *testing.T) {
	r, _ := newTestRenderer()

	vars := Variables{"input:description": "a queue"}
	r.Render("{{description}}", vars)

	assert.Len(t, vars, 1)
	_, ok := vars["description"]
	assert.False(t, ok, "alias leaked into caller's variables")
}

func TestRender_MissingVariablePassThrough(t *testing.T) {
	r, logs := newTestRenderer()

	assert.Equal(t, "{{missing}}", r.Render("{{missing}}", Variables{}))
	assert.Equal(t, "a {{missing}} b", r.Render("a {{missing}} b", nil))
	assert.Contains(t, logs.String(), "no value provided for variable")
	assert.Contains(t, logs.String(), `"name":"missing"`)
}

func TestRender_EndToEnd(t *testing.T) {
	r, _ := newTestRenderer()

	got := r.Render("Hello {{user:name}}, you ordered {{items}}", Variables{
		"user:name": "Ana",
		"items":     []any{"pen", "cup"},
	})
	assert.Equal(t, `Hello Ana, you ordered ["pen","cup"]`, got)
}

func TestRender_SinglePass(t *testing.T) {
	r, _ := newTestRenderer()

	vars := Variables{"a": "{{b}}", "b": "should not appear"}
	assert.Equal(t, "{{b}}!", r.Render("{{a}}!", vars))
}

func TestRender_AdjacentAndRepeatedPlaceholders(t *testing.T) {
	r, _ := newTestRenderer()

	vars := Variables{"a": "1", "b": "2"}
	assert.Equal(t, "1212", r.Render("{{a}}{{b}}{{a}}{{b}}", vars))
	assert.Equal(t, "{1}", r.Render("{{{a}}}", vars))
}

func TestRender_LogsSubstitution(t *testing.T) {
	r, logs := newTestRenderer()

	r.Render("{{a}}", Variables{"a": "1"})
	assert.Contains(t, logs.String(), "substituting variable")
}

func TestRender_Concurrent(t *testing.T) {
	r := NewRenderer(nil)
	vars := Variables{"input:description": "queue", "n": 1}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := r.Render("{{description}}-{{n}}", vars); got != "queue-1" {
					t.Errorf("unexpected render %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRenderJSON(t *testing.T) {
	r, _ := newTestRenderer()

	got, err := r.RenderJSON("{{description}} / {{tags}} / {{meta}} / {{count}}",
		[]byte(`{"input:description":"S3 bucket","tags":["a", "b"],"meta":{"z":1, "a":2},"count":42}`))
	require.NoError(t, err)
	assert.Equal(t, `S3 bucket / ["a","b"] / {"z":1,"a":2} / 42`, got)
}

func TestRenderJSON_InvalidArgument(t *testing.T) {
	r, _ := newTestRenderer()

	for _, input := range []string{``, `null`, `[1,2]`, `"text"`, `42`, `{"broken":`} {
		_, err := r.RenderJSON("{{x}}", []byte(input))
		require.Error(t, err, "input %q", input)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "input %q: %v", input, err)
	}
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders("{{input:description}} {{documentation}} {{input:description}} {{ skip }}")
	assert.Equal(t, []string{"input:description", "documentation"}, names)
	assert.Empty(t, Placeholders("no placeholders"))
}

func TestPackageLevelRender(t *testing.T) {
	assert.Equal(t, "x=1", Render("x={{x}}", Variables{"x": 1}))
	assert.Equal(t, "1", Serialize(1))
}

func TestSerialize(t *testing.T) {
	r, _ := newTestRenderer()

	type label string

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "null"},
		{"int64", int64(-7), "-7"},
		{"uint", uint(7), "7"},
		{"false", false, "false"},
		{"float whole", 100000000.0, "100000000"},
		{"float32", float32(0.5), "0.5"},
		{"json number", json.Number("1.50"), "1.50"},
		{"named string", label("tag"), "tag"},
		{"bytes", []byte("raw"), "raw"},
		{"raw message", json.RawMessage(`{ "b" : 1, "a" : [1, 2] }`), `{"b":1,"a":[1,2]}`},
		{"nested", []any{map[string]any{"k": "<v>"}}, `[{"k":"<v>"}]`},
		{"sorted map keys", map[string]int{"b": 2, "a": 1}, `{"a":1,"b":2}`},
		{"struct", struct{ A int }{A: 1}, "{1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Serialize(tt.value))
		})
	}
}

func TestSerialize_Fallback(t *testing.T) {
	r, logs := newTestRenderer()

	got := r.Serialize([]any{1, math.Inf(1)})
	assert.Equal(t, "[1 +Inf]", got)
	assert.Contains(t, logs.String(), "serialization fallback")

	logs.Reset()
	got = r.Serialize(json.RawMessage(`{not json`))
	assert.Equal(t, "{not json", got)
	assert.True(t, strings.Contains(logs.String(), "serialization fallback"))
}

func TestMissing(t *testing.T) {
	vars := Variables{"input:description": "d", "documentation": "{{needed_improvements}}"}
	tmpl := "{{description}} {{documentation}} {{needed_improvements}} {{cloudformation_template}}"

	assert.Equal(t, []string{"needed_improvements", "cloudformation_template"}, Missing(tmpl, vars))
	assert.Empty(t, Missing("{{description}}", vars))
}
