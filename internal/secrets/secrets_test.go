package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/stepcall/internal/config"
)

type fakeSSM struct {
	values map[string]string
	err    error
	input  *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return &ssm.GetParameterOutput{}, nil
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name, Value: aws.String(value)}}, nil
}

func TestParameterStore_Get(t *testing.T) {
	api := &fakeSSM{values: map[string]string{"/config/openai/apiKey": "sk-secret"}}
	store := NewParameterStore(api, nil)

	value, err := store.Get(context.Background(), "/config/openai/apiKey")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", value)
	assert.True(t, aws.ToBool(api.input.WithDecryption))
}

func TestParameterStore_Missing(t *testing.T) {
	store := NewParameterStore(&fakeSSM{}, nil)

	_, err := store.Get(context.Background(), "/missing")
	assert.ErrorIs(t, err, ErrParameterNotFound)
}

func TestParameterStore_APIError(t *testing.T) {
	boom := errors.New("access denied")
	store := NewParameterStore(&fakeSSM{err: boom}, nil)

	_, err := store.Get(context.Background(), "/config/openai/apiKey")
	assert.ErrorIs(t, err, boom)
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()
	store := NewParameterStore(&fakeSSM{values: map[string]string{"/key": "from-ssm"}}, nil)

	key, err := ResolveAPIKey(ctx, &config.FunctionCallConfig{APIKey: "direct", APIKeyParameter: "/key"}, store)
	require.NoError(t, err)
	assert.Equal(t, "direct", key)

	key, err = ResolveAPIKey(ctx, &config.FunctionCallConfig{APIKeyParameter: "/key"}, store)
	require.NoError(t, err)
	assert.Equal(t, "from-ssm", key)

	_, err = ResolveAPIKey(ctx, &config.FunctionCallConfig{}, store)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = ResolveAPIKey(ctx, &config.FunctionCallConfig{APIKeyParameter: "/key"}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
