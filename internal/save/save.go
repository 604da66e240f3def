// Package save archives a generated template and its documentation as a
// single object in S3.
package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/logging"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrWriteFailed  = errors.New("object write failed")
)

const (
	FieldTemplate      = "cloudformation_template"
	FieldDocumentation = "documentation"
)

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Event is the save step input. Unknown fields are ignored.
type Event struct {
	Template      *string `json:"cloudformation_template"`
	Documentation *string `json:"documentation"`
}

// Response mirrors an API Gateway style reply.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Handler writes composed documents to a bucket.
type Handler struct {
	api    ObjectAPI
	config *config.SaveConfig
	logger *slog.Logger
}

// New creates a save handler.
func New(api ObjectAPI, cfg *config.SaveConfig, logger *slog.Logger) *Handler {
	return &Handler{api: api, config: cfg, logger: logging.OrNop(logger)}
}

// NewFromConfig creates a save handler backed by an S3 client.
func NewFromConfig(awsCfg aws.Config, cfg *config.SaveConfig, logger *slog.Logger) *Handler {
	return New(s3.NewFromConfig(awsCfg), cfg, logger)
}

// Compose prefixes every non-empty documentation line with "# " and places
// the result above the template, separated by a blank line.
func Compose(documentation, template string) string {
	var lines []string
	for _, line := range strings.Split(documentation, "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, "# "+line)
	}
	return strings.Join(lines, "\n") + "\n\n" + template
}

// Handle writes <request id>/<object name> and reports the location.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (Response, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Response{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Template == nil {
		return Response{}, fmt.Errorf("%w: %s", ErrMissingField, FieldTemplate)
	}
	if event.Documentation == nil {
		return Response{}, fmt.Errorf("%w: %s", ErrMissingField, FieldDocumentation)
	}

	key := requestID(ctx) + "/" + h.config.ObjectName
	body := Compose(*event.Documentation, *event.Template)

	h.logger.Info("writing object", "bucket", h.config.BucketName, "key", key, "bytes", len(body))
	_, err := h.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.config.BucketName),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String("text/yaml"),
	})
	if err != nil {
		h.logger.Error("unable to write object", "bucket", h.config.BucketName, "key", key, "error", err)
		return Response{}, fmt.Errorf("%w: %s/%s: %w", ErrWriteFailed, h.config.BucketName, key, err)
	}

	return Response{
		StatusCode: http.StatusOK,
		Body:       "CloudFormation template and documentation saved to S3 under key: " + h.config.BucketName + "/" + key,
	}, nil
}

// requestID returns the Lambda request id, or a fresh UUID outside Lambda.
func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
