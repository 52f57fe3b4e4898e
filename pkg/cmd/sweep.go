package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/app"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage"
)

var (
	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "expire lapsed signatures once and release their quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, mgr, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			res, err := svcs.Sweeper.Sweep(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}

			return printJSON(cmd, res)
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "create or update the schema and seed the baseline plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configs.GetConfig()

			mgr, err := storage.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := app.Migrate(mgr, cfg); err != nil {
				return err
			}

			cmd.Println("schema up to date")

			return nil
		},
	}
)

func registerSweepCommands() {
	rootCmd.AddCommand(sweepCmd)
}

func registerMigrateCommands() {
	rootCmd.AddCommand(migrateCmd)
}
