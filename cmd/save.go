package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/stepcall/internal/logging"
)

var saveEvent string

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Archive a generated template and documentation to S3",
	Long: `Write the cloudformation_template and documentation fields of an event to
S3 as a single YAML object, the documentation rendered as comments.

Required environment variables:
  S3_BUCKET_NAME     - destination bucket
  S3_OBJECT_NAME     - object name under the request id (default: cloudformation.yaml)

Examples:
  stepcall save --event result.json`,
	Args: cobra.NoArgs,
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().StringVar(&saveEvent, "event", "-", "Event JSON file, or - for stdin")
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger(logging.DefaultConfig())

	event, err := readEvent(saveEvent, cmd.InOrStdin())
	if err != nil {
		return err
	}

	h, err := newSaveHandler(ctx, logger)
	if err != nil {
		return err
	}

	resp, err := h.Handle(ctx, event)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ "+resp.Body))
	return nil
}
