package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"innersight/internal/config"
	"innersight/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage the Postgres schema for entries and profiles.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status

Requires database.driver: postgres and a connection URL (DATABASE_URL).`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context(), cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd.Context(), cmd)
		},
	})

	return cmd
}

func openMigrator() (*persistence.PostgresDB, *persistence.MigrationManager, error) {
	cfg := config.Get()
	if cfg.Database.Driver != "postgres" {
		return nil, nil, fmt.Errorf("migrations require database.driver: postgres (current: %s)", cfg.Database.Driver)
	}
	db, err := persistence.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	return db, persistence.NewMigrationManager(db), nil
}

func runMigrateUp(ctx context.Context, cmd *cobra.Command) error {
	db, migrator, err := openMigrator()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Applied %d migration(s)\n", applied)
	return nil
}

func runMigrateStatus(ctx context.Context, cmd *cobra.Command) error {
	db, migrator, err := openMigrator()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(status) == 0 {
		fmt.Fprintln(out, "No migrations found")
		return nil
	}

	fmt.Fprintf(out, "%-10s %-10s %s\n", "Version", "Status", "Description")
	pending := 0
	for _, m := range status {
		state := "applied"
		if !m.Applied {
			state = "pending"
			pending++
		}
		fmt.Fprintf(out, "%-10d %-10s %s\n", m.Version, state, m.Description)
	}

	if pending > 0 {
		fmt.Fprintln(out, "\nRun 'innersight migrate up' to apply pending migrations")
	}
	return nil
}
