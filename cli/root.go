package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cesarhb/kb-engine-playground/pkg/config"
	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kb-engine",
		Short:         "RAG playground: ingest documents, search them, and ask questions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupRuntime(cmd)
		},
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	root.PersistentFlags().Bool("log-source", false, "include source locations in logs")
	root.PersistentFlags().String("env-file", "", "load environment variables from this file")

	root.AddCommand(
		IngestCmd(),
		AskCmd(),
		SearchCmd(),
		ServeCmd(),
		InitDBCmd(),
	)
	return root
}

// setupRuntime loads the env file, configures logging, resolves the
// application config, and stores both on the command context.
func setupRuntime(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %q: %w", envFile, err)
		}
	} else if _, statErr := os.Stat(".env"); statErr == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}

	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	logger.SetupLogger(logLevel, logJSON, logSource)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ctx = logger.ContextWithLogger(ctx, logger.GetDefault())
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}
