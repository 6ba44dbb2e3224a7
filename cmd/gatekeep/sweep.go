// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/auth"
	authpostgres "github.com/gatekeep/gatekeep/internal/auth/postgres"
	"github.com/gatekeep/gatekeep/internal/store"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired sessions once and exit",
		Long: `Delete all expired session records from the PostgreSQL session store.
The Redis backend expires keys server-side and needs no sweep.`,
		RunE: runSweep,
	}
}

func runSweep(cmd *cobra.Command, _ []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	ctx := cmd.Context()

	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessions, err := auth.NewSessionManager(authpostgres.NewSessionRepository(pool), 0)
	if err != nil {
		return err
	}

	removed, err := sessions.SweepExpired(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Removed %d expired sessions\n", removed)
	return nil
}
