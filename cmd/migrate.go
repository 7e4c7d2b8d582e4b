package cmd

import (
	"context"
	"fmt"

	"github.com/Maxim80/devman-async-sms-mailings/internal/db"
	"github.com/Maxim80/devman-async-sms-mailings/internal/logger"
	"github.com/Maxim80/devman-async-sms-mailings/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL mailings table and the ClickHouse archive table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		applied := 0

		if cfg.MySQL.DSN != "" {
			sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
			if err != nil {
				return fmt.Errorf("open mysql: %w", err)
			}
			defer sqlDB.Close()

			if _, err := sqlDB.ExecContext(ctx, repository.MySQLSchema); err != nil {
				return fmt.Errorf("exec mysql migration: %w", err)
			}
			logger.Log.Info("mysql schema applied", zap.String("table", "mailings"))
			applied++
		}

		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("open clickhouse: %w", err)
			}
			defer chDB.Close()

			if _, err := chDB.ExecContext(ctx, repository.ClickHouseSchema); err != nil {
				return fmt.Errorf("exec clickhouse migration: %w", err)
			}
			logger.Log.Info("clickhouse schema applied", zap.String("table", "mailings_archive"))
			applied++
		}

		if applied == 0 {
			return fmt.Errorf("nothing to migrate: set mysql.dsn and/or clickhouse.dsn")
		}

		fmt.Fprintln(cmd.OutOrStdout(), ">> Migration complete")
		return nil
	},
}
