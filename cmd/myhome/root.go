package main

import (
	"fmt"
	"os"

	"github.com/netkrida/myhome-sub001/internal/cli"
	"github.com/netkrida/myhome-sub001/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "myhome",
	Short: "myhome runs the property listing wizards",
	Long: `myhome hosts the multi-step wizards used to create properties, rooms and room types.
It keeps in-progress answers across reloads and submits the finished aggregate to the platform API.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "myhome.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("storage", "", "Override storage.session.driver (memory, file, redis, sqlite)")
	rootCmd.PersistentFlags().String("storage-path", "", "Override storage.session.path")
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if driver, _ := cmd.Flags().GetString("storage"); driver != "" {
		cfg.Storage.Session.Driver = driver
	}
	if p, _ := cmd.Flags().GetString("storage-path"); p != "" {
		cfg.Storage.Session.Path = p
	}
	if cmd.Flags().Lookup("addr") != nil && cmd.Flags().Changed("addr") {
		cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
	}
	return cfg, cfg.Validate()
}

// openApp loads configuration and wires the engine. quiet silences logging
// for commands whose stdout is the product.
func openApp(cmd *cobra.Command, quiet bool) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(cfg, cli.NewLogger(cfg.Log.Level, quiet))
}
