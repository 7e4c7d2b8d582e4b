package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisOptions turns the store section into client options. URI has the
// redis://[user:password@]host:port/db form; explicit username/password win.
func RedisOptions(cfg config.StoreConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("parse store uri: %w", err)
	}
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DialTimeout = cfg.DialTimeout
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return opts, nil
}

func NewRedisClient(cfg config.StoreConfig) (*redis.Client, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
