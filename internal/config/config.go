// Package config loads handler configuration from the environment once at
// startup and validates it before any request is served.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Yates-Labs/stepcall/internal/logging"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// ToolSpec is one entry of the chat-completion "tools" list.
type ToolSpec struct {
	Type     string       `json:"type" yaml:"type"`
	Function FunctionSpec `json:"function" yaml:"function"`
}

// FunctionSpec describes a function the model may be forced to call.
type FunctionSpec struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Strict      *bool          `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// RetryConfig bounds the retries around the chat-completion request.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialInterval is the backoff multiplier for the first retry.
	InitialInterval time.Duration

	// MaxInterval caps a single wait between attempts.
	MaxInterval time.Duration
}

// DefaultRetryConfig matches the function-calling Lambda: three attempts,
// random exponential waits of up to 40 seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     40 * time.Second,
	}
}

// FunctionCallConfig configures the function-calling handler.
type FunctionCallConfig struct {
	// Prompt is the template rendered with the invocation event.
	Prompt string

	// Tools lists the functions offered to the model.
	Tools []ToolSpec

	// FunctionCall names the tool the model is forced to call.
	FunctionCall string

	Model       string
	MaxTokens   int
	Temperature float64

	// LambdaKey prefixes result keys ("<key>:<field>") unless
	// SuppressPrefixing is set.
	LambdaKey         string
	SuppressPrefixing bool

	// APIKey is used as-is when set; otherwise it is read from the
	// parameter store entry named APIKeyParameter.
	APIKey          string
	APIKeyParameter string

	BaseURL string
	Region  string
	Retry   RetryConfig
}

// SaveConfig configures the document archive handler.
type SaveConfig struct {
	BucketName string
	ObjectName string
}

const (
	DefaultModel      = "gpt-4-turbo"
	DefaultMaxTokens  = 2048
	DefaultObjectName = "cloudformation.yaml"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("openai_gpt_model", DefaultModel)
	v.SetDefault("openai_max_tokens", DefaultMaxTokens)
	v.SetDefault("openai_max_attempts", DefaultRetryConfig().MaxAttempts)
	v.SetDefault("openai_retry_initial_interval", DefaultRetryConfig().InitialInterval.String())
	v.SetDefault("openai_retry_max_interval", DefaultRetryConfig().MaxInterval.String())
	v.SetDefault("s3_object_name", DefaultObjectName)
	return v
}

// LoadFunctionCall reads the function-calling handler configuration from
// the environment and validates it.
func LoadFunctionCall() (*FunctionCallConfig, error) {
	cfg, err := loadFunctionCall(newViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFunctionCallPartial reads the same variables as LoadFunctionCall but
// skips validation, so a caller can overlay a built-in stage first.
func LoadFunctionCallPartial() (*FunctionCallConfig, error) {
	return loadFunctionCall(newViper())
}

func loadFunctionCall(v *viper.Viper) (*FunctionCallConfig, error) {
	cfg := &FunctionCallConfig{
		FunctionCall:      v.GetString("openai_function_call"),
		Model:             v.GetString("openai_gpt_model"),
		LambdaKey:         v.GetString("lambda_key"),
		SuppressPrefixing: v.GetString("suppress_prefixing") == "true",
		APIKey:            v.GetString("openai_api_key"),
		APIKeyParameter:   v.GetString("openai_api_key_parameter_name"),
		BaseURL:           v.GetString("openai_base_url"),
		Region:            v.GetString("aws_region"),
	}

	var err error
	if cfg.MaxTokens, err = getInt(v, "openai_max_tokens"); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxAttempts, err = getInt(v, "openai_max_attempts"); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = getFloat(v, "openai_temperature"); err != nil {
		return nil, err
	}

	prompt, err := ParsePrompt(v.GetString("openai_prompt"))
	if err != nil {
		return nil, fmt.Errorf("%w: OPENAI_PROMPT: %w", ErrInvalidConfig, err)
	}
	cfg.Prompt = prompt

	if raw := v.GetString("openai_functions"); raw != "" {
		tools, err := ParseTools(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: OPENAI_FUNCTIONS: %w", ErrInvalidConfig, err)
		}
		cfg.Tools = tools
	}

	initial, err := time.ParseDuration(v.GetString("openai_retry_initial_interval"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid OPENAI_RETRY_INITIAL_INTERVAL: %w", ErrInvalidConfig, err)
	}
	cfg.Retry.InitialInterval = initial

	maxInterval, err := time.ParseDuration(v.GetString("openai_retry_max_interval"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid OPENAI_RETRY_MAX_INTERVAL: %w", ErrInvalidConfig, err)
	}
	cfg.Retry.MaxInterval = maxInterval

	return cfg, nil
}

// getInt reads an integer setting. Unlike viper's GetInt, a value that is
// not a number is an error instead of zero. An unset value is zero.
func getInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q: must be an integer", ErrInvalidConfig, strings.ToUpper(key), raw)
	}
	return n, nil
}

// getFloat is getInt for decimal settings.
func getFloat(v *viper.Viper, key string) (float64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q: must be a number", ErrInvalidConfig, strings.ToUpper(key), raw)
	}
	return f, nil
}

// ParsePrompt decodes a prompt stored as a JSON string literal. Values that
// do not start with a quote are taken verbatim.
func ParsePrompt(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, `"`) {
		return raw, nil
	}
	var prompt string
	if err := json.Unmarshal([]byte(trimmed), &prompt); err != nil {
		return "", err
	}
	return prompt, nil
}

// ParseTools decodes a JSON array of tool definitions.
func ParseTools(raw string) ([]ToolSpec, error) {
	var tools []ToolSpec
	if err := json.Unmarshal([]byte(raw), &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// Validate checks that every required field is present and consistent.
func (c *FunctionCallConfig) Validate() error {
	if c.Prompt == "" {
		return fmt.Errorf("%w: OPENAI_PROMPT is required", ErrInvalidConfig)
	}
	if len(c.Tools) == 0 {
		return fmt.Errorf("%w: OPENAI_FUNCTIONS is required", ErrInvalidConfig)
	}
	if c.FunctionCall == "" {
		return fmt.Errorf("%w: OPENAI_FUNCTION_CALL is required", ErrInvalidConfig)
	}
	if c.Tool(c.FunctionCall) == nil {
		return fmt.Errorf("%w: OPENAI_FUNCTION_CALL %q is not among OPENAI_FUNCTIONS", ErrInvalidConfig, c.FunctionCall)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: OPENAI_GPT_MODEL is required", ErrInvalidConfig)
	}
	if c.LambdaKey == "" {
		return fmt.Errorf("%w: LAMBDA_KEY is required", ErrInvalidConfig)
	}
	if c.APIKey == "" && c.APIKeyParameter == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY or OPENAI_API_KEY_PARAMETER_NAME is required", ErrInvalidConfig)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: OPENAI_MAX_TOKENS must not be negative", ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: OPENAI_MAX_ATTEMPTS must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Tool returns the tool with the given function name, or nil.
func (c *FunctionCallConfig) Tool(name string) *ToolSpec {
	for i := range c.Tools {
		if c.Tools[i].Function.Name == name {
			return &c.Tools[i]
		}
	}
	return nil
}

// LoadSave reads the save handler configuration from the environment.
func LoadSave() (*SaveConfig, error) {
	v := newViper()
	cfg := &SaveConfig{
		BucketName: v.GetString("s3_bucket_name"),
		ObjectName: v.GetString("s3_object_name"),
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("%w: S3_BUCKET_NAME is required", ErrInvalidConfig)
	}
	if cfg.ObjectName == "" {
		cfg.ObjectName = DefaultObjectName
	}
	return cfg, nil
}

// LoadLogging reads LOG_LEVEL and LOG_FORMAT on top of base.
func LoadLogging(base logging.Config) logging.Config {
	v := viper.New()
	v.AutomaticEnv()

	cfg := base
	if level := v.GetString("log_level"); level != "" {
		cfg.Level = logging.ParseLevel(level)
	}
	cfg.Format = logging.ParseFormat(v.GetString("log_format"), base.Format)
	return cfg
}
