// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package main

import (
	"os"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/config"
	"github.com/accountd/accountd/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect the schema migrations embedded in the binary.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE:  runMigrateDown,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE:  runMigrateStatus,
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force the migration version without running migrations",
			Long: `Force the recorded migration version. Use after a failed
migration left the database dirty and the state has been fixed by hand.`,
			Args: cobra.ExactArgs(1),
			RunE: runMigrateForce,
		},
	)

	return cmd
}

// migrationDatabaseURL resolves the database URL from the config file
// when one is given, falling back to DATABASE_URL.
func migrationDatabaseURL() (string, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return "", err
		}
		return cfg.Database.URL, nil
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", oops.Code("CONFIG_INVALID").Errorf("--config or DATABASE_URL is required")
}

func newMigrator() (*store.Migrator, error) {
	databaseURL, err := migrationDatabaseURL()
	if err != nil {
		return nil, err
	}
	return store.NewMigrator(databaseURL)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	migrator, err := newMigrator()
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to the migration result

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	migrator, err := newMigrator()
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to the migration result

	cmd.Println("Rolling back migrations...")
	if err := migrator.Down(); err != nil {
		return err
	}
	cmd.Println("Rollback completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	migrator, err := newMigrator()
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to the status output

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		cmd.Println("Current version: none")
	} else {
		cmd.Printf("Current version: %d (dirty: %t)\n", version, dirty)
	}

	applied, err := migrator.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}

	printMigrations := func(label string, versions []uint) {
		cmd.Printf("%s (%d):\n", label, len(versions))
		for _, v := range versions {
			name, err := store.MigrationName(v)
			if err != nil {
				name = "unknown"
			}
			cmd.Printf("  %d %s\n", v, name)
		}
	}
	printMigrations("Applied", applied)
	printMigrations("Pending", pending)
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("INVALID_VERSION").
			With("version", args[0]).
			Errorf("version must be an integer")
	}

	migrator, err := newMigrator()
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to the force result

	if err := migrator.Force(version); err != nil {
		return err
	}
	cmd.Printf("Forced migration version to %d\n", version)
	return nil
}
