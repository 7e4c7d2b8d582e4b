package cmd

import (
	"fmt"
	"os"

	"github.com/Maxim80/devman-async-sms-mailings/cmd/worker"
	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/Maxim80/devman-async-sms-mailings/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	envPath string
	rootCmd = &cobra.Command{
		Use:   "mailer",
		Short: "SMS mailing service for SMSC.ru",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is fine; the environment may already be set
			if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", envPath, err)
			}
			return nil
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "path to .env file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}

// loadConfig reads the config and initializes the global logger from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Encoding)
	return cfg, nil
}
