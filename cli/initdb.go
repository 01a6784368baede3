package cli

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

func InitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Enable the pgvector extension on the configured database",
		RunE:  runInitDB,
	}
}

func runInitDB(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	conn, err := pgx.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable vector extension: %w", err)
	}
	logger.FromContext(ctx).Info("pgvector extension enabled")
	fmt.Fprintln(cmd.OutOrStdout(), "Database ready: pgvector extension enabled")
	return nil
}
