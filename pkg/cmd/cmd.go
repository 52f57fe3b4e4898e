// Package cmd contains the command line application.
package cmd

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/app"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage"
	"github.com/yeisme/sharevault/pkg/log"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:           configs.AppName,
		Short:         "Quota-bounded file sharing with single-use upload and download links",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := configs.InitConfig(configPath); err != nil {
				return err
			}

			if debug {
				cfg := configs.GetConfig()
				cfg.Server.Debug = true
				configs.SetConfig(*cfg)
			}

			cfg := configs.GetConfig()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			log.Init()

			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory holding config.{yaml,json,toml,env}")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging, gin debug mode and swagger")

	registerServeCommands()
	registerSweepCommands()
	registerMigrateCommands()
	registerPlanCommands()
	registerUserCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openServices connects storage, migrates and builds the services for
// one-off commands. The caller closes the manager.
func openServices(ctx context.Context) (*service.Services, *storage.Manager, error) {
	cfg := configs.GetConfig()

	mgr, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := app.Migrate(mgr, cfg); err != nil {
		_ = mgr.Close()
		return nil, nil, err
	}

	return service.New(service.DepsFromManager(mgr, cfg)), mgr, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return err
}
