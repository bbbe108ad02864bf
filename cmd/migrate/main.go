package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fieldops/accessctl/config"
	"github.com/fieldops/accessctl/internal/observability"
	"github.com/fieldops/accessctl/repositories/postgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger   *zap.Logger
	migrator *migrate.Migrate
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool for accessctl",
		Long: `Database migration tool for accessctl.
Applies the embedded PostgreSQL schema migrations using golang-migrate.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  runUp,
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Rollback migrations (default: 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runDown,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show current migration version",
			Args:  cobra.NoArgs,
			RunE:  runVersion,
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force set migration version (use with caution)",
			Args:  cobra.ExactArgs(1),
			RunE:  runForce,
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.New(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err = observability.NewLogger(cfg.Observability.LogLevel, "console", cfg.Environment)
	if err != nil {
		return err
	}

	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		return err
	}

	migrator, err = postgres.NewMigrator(db)
	if err != nil {
		_ = db.Close()
		return err
	}
	return nil
}

func teardown(*cobra.Command, []string) error {
	if migrator == nil {
		return nil
	}
	sourceErr, dbErr := migrator.Close()
	return errors.Join(sourceErr, dbErr)
}

func runUp(*cobra.Command, []string) error {
	err := migrator.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	logger.Info("migration up completed")
	return nil
}

func runDown(_ *cobra.Command, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("steps must be a positive integer, got %q", args[0])
		}
		steps = n
	}

	err := migrator.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to rollback")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	logger.Info("migration down completed", zap.Int("steps", steps))
	return nil
}

func runVersion(*cobra.Command, []string) error {
	version, dirty, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	logger.Info("current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func runForce(_ *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("version must be an integer, got %q", args[0])
	}
	if err := migrator.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	logger.Info("migration version forced", zap.Int("version", version))
	return nil
}
