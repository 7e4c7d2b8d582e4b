package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/errs"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	Gateway    GatewayConfig   `mapstructure:"gateway"`
	Dispatch   DispatchConfig  `mapstructure:"dispatch"`
	Store      StoreConfig     `mapstructure:"store"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Broadcast  BroadcastConfig `mapstructure:"broadcast"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Archiver   ArchiverConfig  `mapstructure:"archiver"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type GatewayConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Login    string        `mapstructure:"login"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RPS      float64       `mapstructure:"rps"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

type DispatchConfig struct {
	// Recipients is the outbound phone list. Browser input never selects recipients.
	Recipients string `mapstructure:"recipients"`
	ValidHours int    `mapstructure:"valid_hours"`
}

type StoreConfig struct {
	Driver      string        `mapstructure:"driver"` // redis|mysql
	URI         string        `mapstructure:"uri"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type BroadcastConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	StatusRefresh bool          `mapstructure:"status_refresh"`
	StatusTTL     time.Duration `mapstructure:"status_ttl"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

// Enabled reports whether mailing events should be published.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 && k.Topic != "" }

type ArchiverConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

const (
	StoreRedis = "redis"
	StoreMySQL = "mysql"
)

// legacyEnv maps keys to the variable names used by the SMSC tooling.
var legacyEnv = map[string]string{
	"gateway.login":       "SMSC_LOGIN",
	"gateway.password":    "SMSC_PASSW",
	"dispatch.recipients": "SMSC_PHONES",
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides
// (MAILER_* plus SMSC_LOGIN, SMSC_PASSW, SMSC_PHONES).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	// env override (MAILER_*)
	v.SetEnvPrefix("MAILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "MAILER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateGateway reports missing gateway credentials. Commands that talk to SMSC call it
// at startup; the error matches errs.ErrConfiguration.
func (c Config) ValidateGateway() error {
	var problems []error
	if strings.TrimSpace(c.Gateway.Login) == "" {
		problems = append(problems, errs.Configuration("gateway login is not set (SMSC_LOGIN)"))
	}
	if strings.TrimSpace(c.Gateway.Password) == "" {
		problems = append(problems, errs.Configuration("gateway password is not set (SMSC_PASSW)"))
	}
	if c.Gateway.Timeout <= 0 {
		problems = append(problems, errs.Configuration("gateway.timeout must be > 0"))
	}
	return errors.Join(problems...)
}

// Validate checks everything the serve command needs.
func (c Config) Validate() error {
	problems := []error{c.ValidateGateway()}

	if c.Dispatch.ValidHours <= 0 {
		problems = append(problems, errs.Configuration("dispatch.valid_hours must be > 0"))
	}
	if c.Broadcast.Interval <= 0 {
		problems = append(problems, errs.Configuration("broadcast.interval must be > 0"))
	}
	switch c.Store.Driver {
	case StoreRedis:
		if c.Store.URI == "" {
			problems = append(problems, errs.Configuration("store.uri is required for the redis store"))
		}
	case StoreMySQL:
		if c.MySQL.DSN == "" {
			problems = append(problems, errs.Configuration("mysql.dsn is required for the mysql store"))
		}
	default:
		problems = append(problems, errs.Configuration(fmt.Sprintf("unknown store.driver %q", c.Store.Driver)))
	}
	return errors.Join(problems...)
}
