package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/broadcast"
	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/Maxim80/devman-async-sms-mailings/internal/db"
	"github.com/Maxim80/devman-async-sms-mailings/internal/gateway"
	httpSrv "github.com/Maxim80/devman-async-sms-mailings/internal/http"
	"github.com/Maxim80/devman-async-sms-mailings/internal/kafka"
	"github.com/Maxim80/devman-async-sms-mailings/internal/logger"
	"github.com/Maxim80/devman-async-sms-mailings/internal/metrics"
	"github.com/Maxim80/devman-async-sms-mailings/internal/repository"
	"github.com/Maxim80/devman-async-sms-mailings/internal/service/dispatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server and status broadcaster",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		lg := logger.Log
		defer func() { _ = lg.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		// redis backs the rate limiter and, by default, the mailing store
		var rdb *redis.Client
		if cfg.Store.URI != "" {
			rdb, err = db.NewRedisClient(cfg.Store)
			if err != nil {
				if cfg.Store.Driver == config.StoreRedis {
					return fmt.Errorf("redis connect: %w", err)
				}
				lg.Warn("redis unavailable, rate limit disabled", zap.Error(err))
				rdb = nil
			}
		}
		if rdb != nil {
			defer func() { _ = rdb.Close() }()
		}

		var store repository.MailingStore
		switch cfg.Store.Driver {
		case config.StoreMySQL:
			mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
			if err != nil {
				return fmt.Errorf("mysql connect: %w", err)
			}
			defer mysqlDB.Close()
			store = repository.NewMySQLMailingStore(mysqlDB)
		default:
			store = repository.NewRedisMailingStore(rdb)
		}

		gw := gateway.NewClient(cfg.Gateway, lg.Named("smsc"))
		svc := dispatch.New(gw, store, cfg.Dispatch, lg.Named("dispatch"))

		if cfg.Kafka.Enabled() {
			producer := kafka.NewProducerFromConfig(kafka.ConfigFrom(cfg.Kafka))
			defer func() { _ = producer.Close() }()
			svc.WithEvents(producer)
		}

		deps := httpSrv.Deps{
			Dispatcher: svc,
			Gateway:    gw,
			Hub:        broadcast.NewHub(lg.Named("hub")),
			Log:        lg.Named("http"),
		}
		if rdb != nil {
			deps.Redis = rdb
		}

		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				lg.Warn("clickhouse unavailable, reports disabled", zap.Error(err))
			} else {
				defer func() { _ = chDB.Close() }()
				deps.Archive = repository.NewCHMailingArchive(chDB)
			}
		}

		var resolver broadcast.StatusResolver = broadcast.ZeroResolver{}
		if cfg.Broadcast.StatusRefresh {
			resolver = broadcast.NewGatewayResolver(gw, cfg.Broadcast.StatusTTL, lg.Named("status"))
		}
		broadcaster := broadcast.NewBroadcaster(store, deps.Hub, resolver, cfg.Broadcast.Interval, lg.Named("broadcast"))

		server := httpSrv.NewServer(cfg, deps)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := server.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			return broadcaster.Run(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			lg.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(sctx)
		})

		return g.Wait()
	},
}
