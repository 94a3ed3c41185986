package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/pgdb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the credential and permission schemas to Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			if a.cfg.Postgres.DSN == "" {
				return errors.New("postgres.dsn is required (env AUTHCORE_POSTGRES_DSN)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := pgdb.Open(ctx, a.cfg.Postgres.DSN, pgdb.Options{MaxOpenConns: 1})
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := pgdb.Migrate(ctx, db)
			for _, name := range applied {
				a.log.Info("migration applied", zap.String("name", name))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall migration timeout")
	return cmd
}
