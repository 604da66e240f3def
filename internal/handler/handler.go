// Package handler implements the function-calling step: it renders the
// configured prompt from the invocation event, forces the model to answer
// through the configured function and merges the answer into the event.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/llm"
	"github.com/Yates-Labs/stepcall/internal/logging"
	"github.com/Yates-Labs/stepcall/internal/template"
)

var ErrHandlerFailed = errors.New("function call handler failed")

// Result is the handler output: the model's values plus every event field
// they do not shadow.
type Result map[string]any

// Handler runs one function-calling step.
type Handler struct {
	config   *config.FunctionCallConfig
	caller   llm.FunctionCaller
	renderer *template.Renderer
	logger   *slog.Logger
}

// New creates a handler. cfg must already be validated.
func New(cfg *config.FunctionCallConfig, caller llm.FunctionCaller, logger *slog.Logger) *Handler {
	logger = logging.OrNop(logger).With("lambda_key", cfg.LambdaKey)
	return &Handler{
		config:   cfg,
		caller:   caller,
		renderer: template.NewRenderer(logger),
		logger:   logger,
	}
}

// Name returns the key identifying this step.
func (h *Handler) Name() string {
	return h.config.LambdaKey
}

// Handle processes one event. The signature matches the Lambda runtime.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (Result, error) {
	if h.caller == nil {
		return nil, fmt.Errorf("%w: function caller is required", ErrHandlerFailed)
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		h.logger.Info("received event", "request_id", lc.AwsRequestID, "event", string(event))
	} else {
		h.logger.Info("received event", "event", string(event))
	}

	vars, err := template.DecodeVariables(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandlerFailed, err)
	}

	prompt := h.renderer.Render(h.config.Prompt, vars)

	call, err := h.caller.Call(ctx, []llm.Message{llm.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandlerFailed, err)
	}
	h.logger.Info("assistant response", "function", call.Name, "arguments", string(call.Arguments))

	result := Reshape(call.Values, vars, h.config.LambdaKey, h.config.SuppressPrefixing)
	h.logger.Debug("result values", "count", len(result))
	return result, nil
}

// Reshape flattens a function call's values into a result. Each value key k
// becomes "<key>:k" unless suppressPrefix is set. Event fields are then
// copied through for every key the result does not already hold.
func Reshape(values, event template.Variables, key string, suppressPrefix bool) Result {
	result := make(Result, len(values)+len(event))
	for k, v := range values {
		if suppressPrefix {
			result[k] = v
		} else {
			result[key+":"+k] = v
		}
	}
	for k, v := range event {
		if _, exists := result[k]; !exists {
			result[k] = v
		}
	}
	return result
}
