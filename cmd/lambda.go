package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/stepcall/internal/logging"
	"github.com/Yates-Labs/stepcall/internal/stages"
)

var lambdaStage string

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Start a handler inside the AWS Lambda runtime",
	Long: `Start one of the handlers under the AWS Lambda runtime. Configuration is
read and validated once at startup; a missing required variable fails the
cold start instead of the first invocation.

Deployed as the bootstrap of a custom runtime the binary runs without
arguments. It then selects the handler from the function's handler setting
(_HANDLER): "function-call" or "save".`,
}

// Handler names accepted in the Lambda function's handler setting.
const (
	lambdaHandlerFunctionCall = "function-call"
	lambdaHandlerSave         = "save"
)

// lambdaBootstrapArgs returns the arguments to run when the binary starts as
// a Lambda bootstrap with no arguments, or nil when args should be used as
// given.
func lambdaBootstrapArgs(args []string, getenv func(string) string) ([]string, error) {
	if len(args) > 0 || getenv("AWS_LAMBDA_RUNTIME_API") == "" {
		return nil, nil
	}

	switch h := strings.TrimSpace(getenv("_HANDLER")); h {
	case lambdaHandlerFunctionCall, lambdaHandlerSave:
		return []string{"lambda", h}, nil
	default:
		return nil, fmt.Errorf("unknown Lambda handler %q (expected %q or %q)", h, lambdaHandlerFunctionCall, lambdaHandlerSave)
	}
}

var lambdaFunctionCallCmd = &cobra.Command{
	Use:   lambdaHandlerFunctionCall,
	Short: "Serve the function-calling handler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(logging.LambdaConfig())

		h, err := newFunctionCallHandler(context.Background(), lambdaStage, logger)
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			return err
		}

		lambda.Start(h.Handle)
		return nil
	},
}

var lambdaSaveCmd = &cobra.Command{
	Use:   lambdaHandlerSave,
	Short: "Serve the S3 archive handler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(logging.LambdaConfig())

		h, err := newSaveHandler(context.Background(), logger)
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			return err
		}

		lambda.Start(h.Handle)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
	lambdaCmd.AddCommand(lambdaFunctionCallCmd)
	lambdaCmd.AddCommand(lambdaSaveCmd)
	lambdaFunctionCallCmd.Flags().StringVar(&lambdaStage, "stage", "", "Built-in stage: "+strings.Join(stages.Names(), ", "))
}
