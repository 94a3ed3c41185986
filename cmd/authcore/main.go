// Command authcore runs operational tasks for an authcore deployment: schema
// migration, the expiry reaper and signing key generation.
package main

import (
	"fmt"
	"os"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string
	envFile    string

	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "authcore",
		Short:         "Operational commands for authcore",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", envOr("AUTHCORE_CONFIG", ""), "YAML config file (env AUTHCORE_CONFIG)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newMigrateCommand(a),
		newReaperCommand(a),
		newKeysCommand(),
		newCheckCommand(a),
	)
	return root
}

// load reads configuration and builds the logger. Commands that need
// neither skip it.
func (a *app) load() error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return fmt.Errorf("dotenv: %w", err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.Logger())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
