package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/logging"
	"github.com/Yates-Labs/stepcall/internal/stages"
	"github.com/Yates-Labs/stepcall/internal/template"
)

var (
	renderPrompt       string
	renderTemplateFile string
	renderStage        string
	renderEvent        string
	renderRaw          bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a prompt template with event data",
	Long: `Render a prompt template the way the function-calling handler does, without
calling the model.

The template comes from --prompt, --template-file, --stage or the
OPENAI_PROMPT environment variable, in that order. Placeholders without a
value are left in place and reported.

Examples:
  stepcall render --stage qc --event state.json
  stepcall render --prompt 'Hello {{user:name}}' --event - <<< '{"user:name":"Ana"}'`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&renderPrompt, "prompt", "", "Template text")
	renderCmd.Flags().StringVar(&renderTemplateFile, "template-file", "", "Read the template from a file")
	renderCmd.Flags().StringVar(&renderStage, "stage", "", "Use a built-in stage prompt: "+strings.Join(stages.Names(), ", "))
	renderCmd.Flags().StringVar(&renderEvent, "event", "", "Event JSON file, or - for stdin")
	renderCmd.Flags().BoolVar(&renderRaw, "raw", false, "Print only the rendered text")
}

func runRender(cmd *cobra.Command, args []string) error {
	logger := newLogger(logging.DefaultConfig())

	tmpl, err := resolveTemplate()
	if err != nil {
		return err
	}

	event, err := readEvent(renderEvent, cmd.InOrStdin())
	if err != nil {
		return err
	}
	vars, err := template.DecodeVariables(event)
	if err != nil {
		return err
	}

	rendered := template.NewRenderer(logger).Render(tmpl, vars)

	out := cmd.OutOrStdout()
	if renderRaw {
		fmt.Fprint(out, rendered)
		return nil
	}

	fmt.Fprintln(out, headerStyle.Render("Rendered prompt:"))
	fmt.Fprintln(out, valueStyle.Render(rendered))

	if missing := template.Missing(tmpl, vars); len(missing) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, warningStyle.Render("Unresolved placeholders: "+strings.Join(missing, ", ")))
	}
	return nil
}

func resolveTemplate() (string, error) {
	switch {
	case renderPrompt != "":
		return renderPrompt, nil
	case renderTemplateFile != "":
		data, err := os.ReadFile(renderTemplateFile)
		if err != nil {
			return "", fmt.Errorf("read template: %w", err)
		}
		return string(data), nil
	case renderStage != "":
		s, err := stages.Lookup(renderStage)
		if err != nil {
			return "", err
		}
		return s.Prompt, nil
	}

	prompt, err := config.ParsePrompt(os.Getenv("OPENAI_PROMPT"))
	if err != nil {
		return "", fmt.Errorf("%w: OPENAI_PROMPT: %w", config.ErrInvalidConfig, err)
	}
	if prompt == "" {
		return "", fmt.Errorf("no template: use --prompt, --template-file, --stage or OPENAI_PROMPT")
	}
	return prompt, nil
}
