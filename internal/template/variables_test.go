package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVariables(t *testing.T) {
	vars, err := DecodeVariables([]byte(`{
		"input:description": "a bucket",
		"count": 3,
		"ratio": 0.25,
		"ok": true,
		"none": null,
		"list": [1, "two"],
		"obj": {"y": 1, "x": 2}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "a bucket", vars["input:description"])
	assert.Equal(t, json.Number("3"), vars["count"])
	assert.Equal(t, json.Number("0.25"), vars["ratio"])
	assert.Equal(t, true, vars["ok"])
	assert.Nil(t, vars["none"])
	assert.Equal(t, json.RawMessage(`[1, "two"]`), vars["list"])
	assert.Equal(t, json.RawMessage(`{"y": 1, "x": 2}`), vars["obj"])
}

func TestDecodeVariables_Empty(t *testing.T) {
	vars, err := DecodeVariables([]byte(` {} `))
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestExpandScopes(t *testing.T) {
	vars := Variables{
		"input:description": "d",
		"documentation":     "doc",
		"qc:documentation":  "ignored",
		"a:x":               "A",
		"b:x":               "B",
		"trailing:":         "t",
	}

	out := expandScopes(vars)

	assert.Equal(t, "d", out["description"])
	assert.Equal(t, "doc", out["documentation"])
	assert.Equal(t, "B", out["x"])
	assert.Equal(t, "d", out["input:description"])
	_, hasEmpty := out[""]
	assert.False(t, hasEmpty)
	assert.Len(t, vars, 6)
}
