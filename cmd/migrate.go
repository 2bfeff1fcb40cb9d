package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"contentfactory/internal/app"
	"contentfactory/pkg/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		slog.Info("Nothing to migrate", "driver", cfg.Database.Driver)
		return nil
	}

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	slog.Info("Schema up to date")
	return nil
}
