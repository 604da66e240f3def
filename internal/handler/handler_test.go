package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/llm"
	"github.com/Yates-Labs/stepcall/internal/template"
)

func testConfig(suppress bool) *config.FunctionCallConfig {
	return &config.FunctionCallConfig{
		Prompt:            "Description:\n{{input:description}}\nCurrent:\n{{documentation}}",
		FunctionCall:      "generate_cloudformation_template",
		Model:             "gpt-4-turbo",
		LambdaKey:         "entry_lambda",
		SuppressPrefixing: suppress,
		APIKey:            "sk-test",
	}
}

func TestHandle_SuppressedPrefix(t *testing.T) {
	mock := llm.NewMockFunctionCaller("generate_cloudformation_template",
		`{"cloudformation_template":"Resources: {}","documentation":"A bucket"}`)
	h := New(testConfig(true), mock, nil)

	result, err := h.Handle(context.Background(), json.RawMessage(`{"input:description":"An S3 bucket","documentation":"old"}`))
	require.NoError(t, err)

	assert.Equal(t, "Description:\nAn S3 bucket\nCurrent:\nold", mock.LastPrompt())
	assert.Equal(t, "Resources: {}", result["cloudformation_template"])
	assert.Equal(t, "A bucket", result["documentation"], "model output must shadow the event field")
	assert.Equal(t, "An S3 bucket", result["input:description"])
	assert.Len(t, result, 3)
}

func TestHandle_PrefixedKeys(t *testing.T) {
	mock := llm.NewMockFunctionCaller("generate_cloudformation_template", `{"documentation":"new"}`)
	h := New(testConfig(false), mock, nil)

	result, err := h.Handle(context.Background(), json.RawMessage(`{"input:description":"queue","documentation":"old"}`))
	require.NoError(t, err)

	assert.Equal(t, "new", result["entry_lambda:documentation"])
	assert.Equal(t, "old", result["documentation"])
	assert.Equal(t, "queue", result["input:description"])
}

func TestHandle_ResultMarshalsWithRawFragments(t *testing.T) {
	mock := llm.NewMockFunctionCaller("generate_cloudformation_template", `{"documentation":"d"}`)
	h := New(testConfig(true), mock, nil)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	result, err := h.Handle(ctx, json.RawMessage(`{"input:description":"x","tags":{"b":1,"a":2},"count":3}`))
	require.NoError(t, err)

	out, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"documentation":"d","input:description":"x","tags":{"b":1,"a":2},"count":3}`, string(out))
	assert.Contains(t, string(out), `{"b":1,"a":2}`)
}

func TestHandle_InvalidEvent(t *testing.T) {
	mock := llm.NewMockFunctionCaller("generate_cloudformation_template", `{}`)
	h := New(testConfig(true), mock, nil)

	_, err := h.Handle(context.Background(), json.RawMessage(`["not","an","object"]`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerFailed)
	assert.ErrorIs(t, err, template.ErrInvalidArgument)
	assert.Equal(t, 0, mock.Calls())
}

func TestHandle_CallerError(t *testing.T) {
	boom := errors.New("rate limit exceeded")
	h := New(testConfig(true), llm.NewMockFunctionCallerWithError(boom), nil)

	_, err := h.Handle(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrHandlerFailed)
	assert.ErrorIs(t, err, boom)
}

func TestHandle_NilCaller(t *testing.T) {
	h := New(testConfig(true), nil, nil)

	_, err := h.Handle(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrHandlerFailed)
}

func TestReshape(t *testing.T) {
	values := template.Variables{"pass_reject": "fail", "needed_improvements": "add tags"}
	event := template.Variables{"pass_reject": "stale", "documentation": "doc"}

	prefixed := Reshape(values, event, "qc_lambda", false)
	assert.Equal(t, Result{
		"qc_lambda:pass_reject":         "fail",
		"qc_lambda:needed_improvements": "add tags",
		"pass_reject":                   "stale",
		"documentation":                 "doc",
	}, prefixed)

	flat := Reshape(values, event, "qc_lambda", true)
	assert.Equal(t, Result{
		"pass_reject":         "fail",
		"needed_improvements": "add tags",
		"documentation":       "doc",
	}, flat)
}

func TestName(t *testing.T) {
	h := New(testConfig(true), nil, nil)
	assert.Equal(t, "entry_lambda", h.Name())
}
