// Package secrets resolves the model API key, either directly from
// configuration or from an AWS Systems Manager parameter.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/logging"
)

var (
	ErrNoAPIKey          = errors.New("no API key configured")
	ErrParameterNotFound = errors.New("parameter has no value")
)

// ParameterAPI is the subset of the SSM client used here.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore reads decrypted SecureString parameters.
type ParameterStore struct {
	api    ParameterAPI
	logger *slog.Logger
}

// NewParameterStore wraps an SSM client.
func NewParameterStore(api ParameterAPI, logger *slog.Logger) *ParameterStore {
	return &ParameterStore{api: api, logger: logging.OrNop(logger)}
}

// NewParameterStoreFromConfig builds an SSM-backed store from an AWS config.
func NewParameterStoreFromConfig(cfg aws.Config, logger *slog.Logger) *ParameterStore {
	return NewParameterStore(ssm.NewFromConfig(cfg), logger)
}

// Get returns the decrypted value of the named parameter.
func (s *ParameterStore) Get(ctx context.Context, name string) (string, error) {
	s.logger.Debug("reading parameter", "name", name)

	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		s.logger.Error("unable to retrieve parameter", "name", name, "error", err)
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// ResolveAPIKey returns cfg.APIKey when set, otherwise the value of the
// parameter named by cfg.APIKeyParameter. store may be nil when no lookup is
// needed.
func ResolveAPIKey(ctx context.Context, cfg *config.FunctionCallConfig, store *ParameterStore) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.APIKeyParameter == "" {
		return "", ErrNoAPIKey
	}
	if store == nil {
		return "", fmt.Errorf("%w: parameter %s set but no parameter store available", ErrNoAPIKey, cfg.APIKeyParameter)
	}
	return store.Get(ctx, cfg.APIKeyParameter)
}
