package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/and161185/goph-chat/internal/config"
	"github.com/and161185/goph-chat/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{migrate.CmdUp, migrate.CmdDown, migrate.CmdStatus},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if cfg.Database.Memory {
			return errors.New("database.memory is set; nothing to migrate")
		}
		command := migrate.CmdUp
		if len(args) == 1 {
			command = args[0]
		}
		return migrate.Run(cmd.Context(), cfg.Database.DSN, command)
	},
}
