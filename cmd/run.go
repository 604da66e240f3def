package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/handler"
	"github.com/Yates-Labs/stepcall/internal/llm"
	"github.com/Yates-Labs/stepcall/internal/logging"
	"github.com/Yates-Labs/stepcall/internal/stages"
	"github.com/Yates-Labs/stepcall/internal/template"
	"github.com/Yates-Labs/stepcall/internal/workflow"
)

var (
	runDescription     string
	runEvent           string
	runMaxImprovements int
	runNoSave          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full generate, review, improve and save workflow",
	Long: `Run the CloudFormation workflow locally:

1. entry   - generate a template and documentation from the description
2. qc      - review the result and mark it pass or fail
3. improve - on fail, revise using the review feedback, then review again
4. save    - write the approved template to S3

Required environment variables:
  OPENAI_API_KEY or OPENAI_API_KEY_PARAMETER_NAME
  S3_BUCKET_NAME (unless --no-save)

Examples:
  stepcall run --description "A static website on S3 behind CloudFront"
  stepcall run --event input.json --max-improvements 5 --no-save`,
	Args: cobra.NoArgs,
	RunE: runWorkflow,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runDescription, "description", "", "Description of the service to generate (sets input:description)")
	runCmd.Flags().StringVar(&runEvent, "event", "", "Initial event JSON file, or - for stdin")
	runCmd.Flags().IntVar(&runMaxImprovements, "max-improvements", workflow.DefaultMaxImprovements, "Maximum improve/review rounds")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Skip writing the result to S3")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger(logging.DefaultConfig())

	input, err := workflowInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	steps, err := buildSteps(ctx, logger)
	if err != nil {
		return err
	}
	if !runNoSave {
		saver, err := newSaveHandler(ctx, logger)
		if err != nil {
			return err
		}
		steps.Save = saver
	}

	report, err := workflow.NewRunner(steps, runMaxImprovements, logger).Run(ctx, input)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

func workflowInput(stdin io.Reader) (json.RawMessage, error) {
	if runDescription == "" {
		if runEvent == "" {
			return nil, fmt.Errorf("either --description or --event is required")
		}
		return readEvent(runEvent, stdin)
	}
	return json.Marshal(map[string]string{"input:description": runDescription})
}

// buildSteps creates the three function-calling steps sharing one model
// configuration and API key.
func buildSteps(ctx context.Context, logger *slog.Logger) (workflow.Steps, error) {
	base, err := config.LoadFunctionCallPartial()
	if err != nil {
		return workflow.Steps{}, err
	}

	apiKey := ""
	build := func(name string) (*handler.Handler, error) {
		s, err := stages.Lookup(name)
		if err != nil {
			return nil, err
		}
		cfg := s.Apply(base)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if apiKey == "" {
			if apiKey, err = resolveAPIKey(ctx, cfg, logger); err != nil {
				return nil, err
			}
		}
		caller, err := llm.NewOpenAIFunctionCaller(llm.ConfigFrom(cfg, apiKey), logger)
		if err != nil {
			return nil, err
		}
		return handler.New(cfg, caller, logger), nil
	}

	var steps workflow.Steps
	if steps.Entry, err = build(stages.Entry); err != nil {
		return workflow.Steps{}, err
	}
	if steps.QC, err = build(stages.QC); err != nil {
		return workflow.Steps{}, err
	}
	if steps.Improve, err = build(stages.Improve); err != nil {
		return workflow.Steps{}, err
	}
	return steps, nil
}

func printReport(out io.Writer, report *workflow.Report) {
	fmt.Fprintln(out, headerStyle.Render("Workflow:"))
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%v (%d improvement rounds)", report.Trace, report.Improvements)))
	fmt.Fprintln(out)

	keys := make([]string, 0, len(report.Output))
	for k := range report.Output {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintln(out, keyStyle.Render(k+":"))
		fmt.Fprintln(out, valueStyle.Render(template.Serialize(report.Output[k])))
		fmt.Fprintln(out)
	}

	if report.Saved != nil {
		fmt.Fprintln(out, successStyle.Render("✓ "+report.Saved.Body))
	}
}
