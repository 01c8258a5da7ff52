package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Store       StoreConfig       `mapstructure:"store"`
	Cron        CronConfig        `mapstructure:"cron"`
	Dexscreener DexscreenerConfig `mapstructure:"dexscreener"`
	Market      MarketConfig      `mapstructure:"market"`
	Watchlist   WatchlistConfig   `mapstructure:"watchlist"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Batch       BatchConfig       `mapstructure:"batch"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// CronSecret guards the batch refresh endpoint. Empty rejects every call.
	CronSecret string `mapstructure:"cron_secret"`
	// APIToken, when set, is required as a bearer token on the cloud API.
	APIToken string `mapstructure:"api_token"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StoreConfig selects the cloud watchlist backend: postgres, redis or none.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Refresh      string `mapstructure:"refresh"`
	BatchRefresh string `mapstructure:"batch_refresh"`
}

type DexscreenerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryMax       int           `mapstructure:"retry_max"`
	RequestsPerMin int           `mapstructure:"requests_per_min"`
}

type MarketConfig struct {
	Chain       string `mapstructure:"chain"`
	BatchSize   int    `mapstructure:"batch_size"`
	Concurrency int    `mapstructure:"concurrency"`
}

type WatchlistConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

type SyncConfig struct {
	WatchlistID  string        `mapstructure:"watchlist_id"`
	LocalDir     string        `mapstructure:"local_dir"`
	RemoteURL    string        `mapstructure:"remote_url"`
	RemoteToken  string        `mapstructure:"remote_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Debounce     time.Duration `mapstructure:"debounce"`
	ShareBaseURL string        `mapstructure:"share_base_url"`
}

type BatchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	WriteRetry  int           `mapstructure:"write_retry"`
}

// Backend returns the normalized store driver.
func (s StoreConfig) Backend() string {
	switch d := strings.ToLower(strings.TrimSpace(s.Driver)); d {
	case "redis", "none":
		return d
	case "", "postgres", "postgresql", "pg":
		return "postgres"
	default:
		return d
	}
}

func Load(path string, envOnly bool) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("WL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.cron_secret", "")
	v.SetDefault("server.api_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "solwatch")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.refresh", "@every 10s")
	v.SetDefault("cron.batch_refresh", "@every 5m")
	v.SetDefault("dexscreener.base_url", "https://api.dexscreener.com")
	v.SetDefault("dexscreener.timeout", "10s")
	v.SetDefault("dexscreener.retry_max", 2)
	v.SetDefault("dexscreener.requests_per_min", 300)
	v.SetDefault("market.chain", "solana")
	v.SetDefault("market.batch_size", 30)
	v.SetDefault("market.concurrency", 4)
	v.SetDefault("watchlist.max_tokens", 200)
	v.SetDefault("sync.watchlist_id", "")
	v.SetDefault("sync.local_dir", ".solwatch")
	v.SetDefault("sync.remote_url", "")
	v.SetDefault("sync.remote_token", "")
	v.SetDefault("sync.timeout", "10s")
	v.SetDefault("sync.debounce", "2s")
	v.SetDefault("sync.share_base_url", "http://localhost:5173/")
	v.SetDefault("batch.timeout", "50s")
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.write_retry", 3)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
