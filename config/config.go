package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr      string  `mapstructure:"addr"`
	Mode      string  `mapstructure:"mode"` // debug, release
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres, sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// InboxConfig 收件箱分发与缓存调优
type InboxConfig struct {
	ItemTTL         time.Duration `mapstructure:"item_ttl"`
	StateTTL        time.Duration `mapstructure:"state_ttl"`
	CASRetries      int           `mapstructure:"cas_retries"`
	MaxItems        int64         `mapstructure:"max_items"`
	MaxBytes        int64         `mapstructure:"max_bytes"`
	RecentsMaxItems int64         `mapstructure:"recents_max_items"`
	RecentsMaxBytes int64         `mapstructure:"recents_max_bytes"`
	DefaultLimit    int           `mapstructure:"default_limit"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Inbox    InboxConfig    `mapstructure:"inbox"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

// Load reads config.yaml from the working directory or ./config, with
// BLAHBOX_* environment overrides. A missing file is fine: defaults + env.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("BLAHBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.rate_limit", 200)
	v.SetDefault("server.rate_burst", 400)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "blahbox.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("inbox.item_ttl", "30m")
	v.SetDefault("inbox.state_ttl", "30m")
	v.SetDefault("inbox.cas_retries", 16)
	v.SetDefault("inbox.max_items", 100)
	v.SetDefault("inbox.max_bytes", 262144)
	v.SetDefault("inbox.recents_max_items", 200)
	v.SetDefault("inbox.recents_max_bytes", 524288)
	v.SetDefault("inbox.default_limit", 50)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
}
