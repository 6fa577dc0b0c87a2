package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smstodo/smstodo/internal/app"
	"github.com/smstodo/smstodo/internal/config"
	"github.com/smstodo/smstodo/internal/repository"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  `Applies the embedded schema migrations to DATABASE_URL. Already applied files are skipped.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runMigrate(cmd, cfg, cmd.OutOrStdout())
		},
	}
}

func runMigrate(cmd *cobra.Command, cfg *config.Config, out io.Writer) error {
	ctx := cmd.Context()

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %s", app.SanitizeError(err, cfg.DatabaseURL))
	}
	defer repo.Close()

	applied, err := repo.Migrate(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "schema is up to date")
		return nil
	}
	for _, name := range applied {
		fmt.Fprintf(out, "applied %s\n", name)
	}
	return nil
}
