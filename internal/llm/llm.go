// Package llm forces a chat-completion model to answer through a single
// function call. It defines a provider-agnostic FunctionCaller interface with
// an OpenAI implementation and a deterministic mock for tests. The decoded
// function arguments are returned as template variables so they can flow
// straight into the next prompt.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/template"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
	ErrNoToolCall    = errors.New("response contains no function call")
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single chat message sent to the model.
type Message struct {
	Role    Role
	Content string
}

// UserMessage returns a message with the user role.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// FunctionCall is the model's forced function-call answer.
type FunctionCall struct {
	// Name is the function the model called.
	Name string

	// Arguments is the raw JSON object produced by the model.
	Arguments json.RawMessage

	// Values holds Arguments decoded into variables.
	Values template.Variables
}

// FunctionCaller sends messages to a model and returns its function call.
// Implementations must be safe for concurrent use.
type FunctionCaller interface {
	Call(ctx context.Context, messages []Message) (*FunctionCall, error)
}

// Config holds the options for a function-calling request.
type Config struct {
	// Model specifies the model identifier (e.g., "gpt-4-turbo")
	Model string

	// Temperature controls randomness (0 = provider default)
	Temperature float64

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL overrides the provider endpoint when set
	BaseURL string

	// Tools are offered to the model; FunctionCall names the one it must call
	Tools        []config.ToolSpec
	FunctionCall string

	Retry config.RetryConfig
}

// ConfigFrom builds an LLM configuration from handler settings and a
// resolved API key.
func ConfigFrom(cfg *config.FunctionCallConfig, apiKey string) Config {
	return Config{
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		APIKey:       apiKey,
		BaseURL:      cfg.BaseURL,
		Tools:        cfg.Tools,
		FunctionCall: cfg.FunctionCall,
		Retry:        cfg.Retry,
	}
}

// parseArguments decodes the JSON object a model produced for a call.
func parseArguments(name, arguments string) (*FunctionCall, error) {
	values, err := template.DecodeVariables([]byte(arguments))
	if err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	return &FunctionCall{
		Name:      name,
		Arguments: json.RawMessage(arguments),
		Values:    values,
	}, nil
}
