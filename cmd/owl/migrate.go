package main

import (
	"fmt"

	pgStorage "otp-wallet-ledger/internal/adapter/storage/postgres"

	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	for _, sub := range []struct {
		name  string
		short string
	}{
		{pgStorage.MigrateUp, "Apply all pending migrations"},
		{pgStorage.MigrateDown, "Roll back the most recent migration"},
		{pgStorage.MigrateStatus, "Print the state of every migration"},
	} {
		command := sub.name
		cmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := bootstrap(*configPath)
				if err != nil {
					return err
				}
				if err := pgStorage.Migrate(cmd.Context(), cfg.Database.DSN(), command, log); err != nil {
					return fmt.Errorf("migrate %s: %w", command, err)
				}
				log.Info().Str("command", command).Msg("Migration finished")
				return nil
			},
		})
	}

	return cmd
}
