// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back, or inspect the embedded database migrations.`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer m.Close() //nolint:errcheck // best effort on CLI exit

			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return nil
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (destructive)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer m.Close() //nolint:errcheck // best effort on CLI exit

			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("Migrations rolled back")
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer m.Close() //nolint:errcheck // best effort on CLI exit

			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				cmd.Println("No migrations applied")
				return nil
			}
			cmd.Printf("Version: %d (dirty: %v)\n", version, dirty)
			return nil
		},
	}
}

func newMigrator() (*store.Migrator, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	return store.NewMigrator(databaseURL)
}
