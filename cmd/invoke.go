package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/stepcall/internal/logging"
	"github.com/Yates-Labs/stepcall/internal/stages"
)

var (
	invokeStage string
	invokeEvent string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Run the function-calling handler once",
	Long: `Run the function-calling handler locally against an event and print the
result JSON.

Configuration is read from the environment (OPENAI_PROMPT, OPENAI_FUNCTIONS,
OPENAI_FUNCTION_CALL, LAMBDA_KEY, ...). --stage replaces the prompt, tools,
forced function and lambda key with a built-in stage.

Required environment variables:
  OPENAI_API_KEY or OPENAI_API_KEY_PARAMETER_NAME

Examples:
  stepcall invoke --stage entry --event - <<< '{"input:description":"A static website"}'
  stepcall invoke --event event.json`,
	Args: cobra.NoArgs,
	RunE: runInvoke,
}

func init() {
	rootCmd.AddCommand(invokeCmd)
	invokeCmd.Flags().StringVar(&invokeStage, "stage", "", "Built-in stage: "+strings.Join(stages.Names(), ", "))
	invokeCmd.Flags().StringVar(&invokeEvent, "event", "", "Event JSON file, or - for stdin")
}

func runInvoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger(logging.DefaultConfig())

	event, err := readEvent(invokeEvent, cmd.InOrStdin())
	if err != nil {
		return err
	}

	h, err := newFunctionCallHandler(ctx, invokeStage, logger)
	if err != nil {
		return err
	}

	result, err := h.Handle(ctx, event)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
