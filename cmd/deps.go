package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/handler"
	"github.com/Yates-Labs/stepcall/internal/llm"
	"github.com/Yates-Labs/stepcall/internal/save"
	"github.com/Yates-Labs/stepcall/internal/secrets"
	"github.com/Yates-Labs/stepcall/internal/stages"
)

// readEvent reads an event from a file, from stdin for "-", or returns an
// empty object when path is empty.
func readEvent(path string, stdin io.Reader) (json.RawMessage, error) {
	switch path {
	case "":
		return json.RawMessage(`{}`), nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read event from stdin: %w", err)
		}
		return data, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		return data, nil
	}
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// loadFunctionCallConfig reads the environment and, when stage is set,
// overlays the built-in stage before validating.
func loadFunctionCallConfig(stage string) (*config.FunctionCallConfig, error) {
	if stage == "" {
		return config.LoadFunctionCall()
	}

	base, err := config.LoadFunctionCallPartial()
	if err != nil {
		return nil, err
	}
	s, err := stages.Lookup(stage)
	if err != nil {
		return nil, err
	}
	cfg := s.Apply(base)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveAPIKey returns the configured key or reads it from SSM.
func resolveAPIKey(ctx context.Context, cfg *config.FunctionCallConfig, logger *slog.Logger) (string, error) {
	var store *secrets.ParameterStore
	if cfg.APIKey == "" {
		awsCfg, err := loadAWSConfig(ctx, cfg.Region)
		if err != nil {
			return "", err
		}
		store = secrets.NewParameterStoreFromConfig(awsCfg, logger)
	}

	apiKey, err := secrets.ResolveAPIKey(ctx, cfg, store)
	if err != nil {
		return "", fmt.Errorf("resolve API key: %w", err)
	}
	return apiKey, nil
}

func newFunctionCaller(ctx context.Context, cfg *config.FunctionCallConfig, logger *slog.Logger) (llm.FunctionCaller, error) {
	apiKey, err := resolveAPIKey(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return llm.NewOpenAIFunctionCaller(llm.ConfigFrom(cfg, apiKey), logger)
}

func newFunctionCallHandler(ctx context.Context, stage string, logger *slog.Logger) (*handler.Handler, error) {
	cfg, err := loadFunctionCallConfig(stage)
	if err != nil {
		return nil, err
	}
	caller, err := newFunctionCaller(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return handler.New(cfg, caller, logger), nil
}

func newSaveHandler(ctx context.Context, logger *slog.Logger) (*save.Handler, error) {
	cfg, err := config.LoadSave()
	if err != nil {
		return nil, err
	}
	awsCfg, err := loadAWSConfig(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		return nil, err
	}
	return save.NewFromConfig(awsCfg, cfg, logger), nil
}
