package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/Maxim80/devman-async-sms-mailings/internal/db"
	"github.com/Maxim80/devman-async-sms-mailings/internal/kafka"
	"github.com/Maxim80/devman-async-sms-mailings/internal/logger"
	"github.com/Maxim80/devman-async-sms-mailings/internal/metrics"
	"github.com/Maxim80/devman-async-sms-mailings/internal/repository"
	"github.com/Maxim80/devman-async-sms-mailings/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var archiverCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Copy mailing events from Kafka into the ClickHouse archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		lg := logger.Log.Named("archiver")

		if !cfg.Kafka.Enabled() {
			return fmt.Errorf("kafka.brokers and kafka.topic are required")
		}

		metrics.MustRegister(prometheus.DefaultRegisterer)

		// 2) ClickHouse
		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		// 3) kafka consumer
		consumer := kafka.NewConsumerFromConfig(kafka.ConfigFrom(cfg.Kafka))
		defer consumer.Close()

		w := worker.NewArchiver(consumer, repository.NewCHMailingArchive(chDB), lg)
		if cfg.Archiver.BatchSize > 0 {
			w.BatchSize = cfg.Archiver.BatchSize
		}
		if cfg.Archiver.BatchWait > 0 {
			w.BatchWait = cfg.Archiver.BatchWait
		}

		// 4) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lg.Info("archiver started",
			zap.String("topic", cfg.Kafka.Topic),
			zap.String("group", cfg.Kafka.GroupID),
			zap.Int("batch_size", w.BatchSize),
			zap.Duration("batch_wait", w.BatchWait),
		)

		return w.Run(ctx)
	},
}
