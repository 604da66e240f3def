package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/logging"
)

// OpenAIFunctionCaller implements FunctionCaller using OpenAI's chat
// completions API with a forced tool choice.
type OpenAIFunctionCaller struct {
	client openai.Client
	config Config
	tools  []openai.ChatCompletionToolParam
	logger *slog.Logger
}

// NewOpenAIFunctionCaller creates an OpenAI-backed function caller.
// Returns an error if the API key, model or forced function is missing.
func NewOpenAIFunctionCaller(cfg Config, logger *slog.Logger) (*OpenAIFunctionCaller, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}
	if cfg.FunctionCall == "" {
		return nil, fmt.Errorf("%w: missing function to call", ErrInvalidConfig)
	}
	if len(cfg.Tools) == 0 {
		return nil, fmt.Errorf("%w: no tools configured", ErrInvalidConfig)
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = config.DefaultRetryConfig()
	}

	// Retries are driven by Call so the attempt cap is exact.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIFunctionCaller{
		client: openai.NewClient(opts...),
		config: cfg,
		tools:  toolParams(cfg.Tools),
		logger: logging.OrNop(logger),
	}, nil
}

// Call sends the messages, forcing the configured function, and retries
// with random exponential backoff up to the configured attempt cap.
func (o *OpenAIFunctionCaller) Call(ctx context.Context, messages []Message) (*FunctionCall, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", ErrInvalidConfig)
	}

	params := o.buildParams(messages)
	o.logger.Debug("chat completion request",
		"model", o.config.Model,
		"messages", len(messages),
		"tools", len(o.tools),
		"tool_choice", o.config.FunctionCall,
	)

	var (
		result  *FunctionCall
		attempt int
	)
	operation := func() error {
		attempt++
		call, err := o.complete(ctx, params)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = call
		return nil
	}
	notify := func(err error, wait time.Duration) {
		o.logger.Warn("chat completion failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, newBackOff(ctx, o.config.Retry), notify); err != nil {
		o.logger.Error("unable to generate chat completion response", "attempts", attempt, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	o.logger.Debug("function call received", "name", result.Name, "arguments", string(result.Arguments))
	return result, nil
}

func (o *OpenAIFunctionCaller) buildParams(messages []Message) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.config.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Tools:    o.tools,
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: o.config.FunctionCall,
				},
			},
		},
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	if o.config.Temperature > 0 {
		params.Temperature = openai.Float(o.config.Temperature)
	}
	if o.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.config.MaxTokens))
	}
	return params
}

// complete performs a single request and extracts the first tool call.
func (o *OpenAIFunctionCaller) complete(ctx context.Context, params openai.ChatCompletionNewParams) (*FunctionCall, error) {
	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrNoToolCall)
	}

	toolCalls := completion.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		return nil, fmt.Errorf("%w: finish reason %q", ErrNoToolCall, completion.Choices[0].FinishReason)
	}

	fn := toolCalls[0].Function
	return parseArguments(fn.Name, fn.Arguments)
}

func toolParams(specs []config.ToolSpec) []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		fn := shared.FunctionDefinitionParam{
			Name:       spec.Function.Name,
			Parameters: shared.FunctionParameters(spec.Function.Parameters),
		}
		if spec.Function.Description != "" {
			fn.Description = openai.String(spec.Function.Description)
		}
		if spec.Function.Strict != nil {
			fn.Strict = openai.Bool(*spec.Function.Strict)
		}
		params = append(params, openai.ChatCompletionToolParam{Function: fn})
	}
	return params
}

func newBackOff(ctx context.Context, cfg config.RetryConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1)), ctx)
}

// isPermanent reports whether retrying err cannot succeed: client errors
// other than rate limiting, and cancellation.
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
	}
	return false
}
