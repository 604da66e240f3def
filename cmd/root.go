package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/stepcall/internal/config"
	"github.com/Yates-Labs/stepcall/internal/logging"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "stepcall",
	Short: "Stepcall - function-calling steps for CloudFormation generation",
	Long: `Stepcall renders prompt templates from event data, forces an OpenAI model
to answer through a single function call, and archives the generated
CloudFormation template and documentation in S3.

The same handlers run inside AWS Lambda ("stepcall lambda ...") or locally
from the command line.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// A custom runtime starts the bootstrap without arguments
	args, err := lambdaBootstrapArgs(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if args != nil {
		rootCmd.SetArgs(args)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default $LOG_FORMAT or text)")
}

// newLogger builds the CLI logger from the environment and flags.
func newLogger(base logging.Config) *slog.Logger {
	cfg := config.LoadLogging(base)
	if logLevel != "" {
		cfg.Level = logging.ParseLevel(logLevel)
	}
	if logFormat != "" {
		cfg.Format = logging.ParseFormat(logFormat, cfg.Format)
	}
	logger := logging.New(cfg)
	slog.SetDefault(logger)
	return logger
}
