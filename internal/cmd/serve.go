package cmd

import (
	"context"
	"errors"

	ansi "github.com/pynezz/pynezzentials"
	"github.com/spf13/cobra"

	"github.com/tcs-sec/vulncases/internal/api"
	"github.com/tcs-sec/vulncases/internal/config"
	"github.com/tcs-sec/vulncases/internal/database"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the test case API server",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer database.Close(db)

			store := database.NewTestCaseStore(db)
			if err := store.EnsureSchema(); err != nil {
				return err
			}
			ansi.PrintSuccess("unique index ensured on vuln_id")

			if *configPath != "" {
				go func() {
					err := config.Watch(cmd.Context(), *configPath, func(name string) {
						ansi.PrintInfo("config file changed: " + name + " (restart to apply)")
					})
					if err != nil && !errors.Is(err, context.Canceled) {
						ansi.PrintInfo("config watch stopped: " + err.Error())
					}
				}()
			}

			app := api.NewServer(cfg, store)
			ansi.PrintInfo("listening on " + cfg.Addr())
			return app.Listen(cfg.Addr())
		},
	}
}
