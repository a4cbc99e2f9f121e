package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName    string `mapstructure:"app_name"`
	Env        string `mapstructure:"app_env"`
	LogLevel   string `mapstructure:"log_level"`
	ListenAddr string `mapstructure:"listen_addr"`

	StoreType   string `mapstructure:"store_type"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	RawCacheType           string        `mapstructure:"rawcache_type"`
	RawCachePath           string        `mapstructure:"rawcache_path"`
	RawCacheTTLSeconds     int64         `mapstructure:"rawcache_ttl_seconds"`
	RawCacheCleanupSeconds int64         `mapstructure:"rawcache_cleanup_interval_seconds"`
	RawCacheTTL            time.Duration `mapstructure:"-"`
	RawCacheCleanup        time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`

	AutoSyncSeconds  int64         `mapstructure:"auto_sync_interval"`
	AutoSyncInterval time.Duration `mapstructure:"-"`

	UpstreamBaseURL    string        `mapstructure:"upstream_base_url"`
	RequestDelayMs     int64         `mapstructure:"request_delay_ms"`
	RequestDelay       time.Duration `mapstructure:"-"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoffMs     int64         `mapstructure:"retry_backoff_ms"`
	RetryBackoff       time.Duration `mapstructure:"-"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
	MaxShopPages       int           `mapstructure:"max_shop_pages"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "lotto-syncd")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_addr", ":8080")

	v.SetDefault("store_type", "sqlite")
	v.SetDefault("sqlite_path", "./data/lotto.db")
	v.SetDefault("postgres_dsn", "")

	v.SetDefault("rawcache_type", "bbolt")
	v.SetDefault("rawcache_path", "./data/rawpages.db")
	v.SetDefault("rawcache_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("rawcache_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.SetDefault("publishers_file", "")

	v.SetDefault("auto_sync_interval", int64((6*time.Hour)/time.Second))

	v.SetDefault("upstream_base_url", "https://www.dhlottery.co.kr")
	v.SetDefault("request_delay_ms", 1500)
	v.SetDefault("max_retries", 5)
	v.SetDefault("retry_backoff_ms", 3000)
	v.SetDefault("http_timeout_seconds", 60)
	v.SetDefault("max_shop_pages", 20)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RequestDelayMs < 0 {
		return nil, fmt.Errorf("invalid request_delay_ms (must not be negative)")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("invalid max_retries (must not be negative)")
	}
	if cfg.RetryBackoffMs <= 0 {
		return nil, fmt.Errorf("invalid retry_backoff_ms (must be positive)")
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive)")
	}
	if cfg.MaxShopPages <= 0 {
		return nil, fmt.Errorf("invalid max_shop_pages (must be positive)")
	}
	if cfg.RawCacheTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid rawcache_ttl_seconds (must be positive)")
	}
	if cfg.RawCacheCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid rawcache_cleanup_interval_seconds (must be positive)")
	}

	cfg.RequestDelay = time.Duration(cfg.RequestDelayMs) * time.Millisecond
	cfg.RetryBackoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	cfg.RawCacheTTL = time.Duration(cfg.RawCacheTTLSeconds) * time.Second
	cfg.RawCacheCleanup = time.Duration(cfg.RawCacheCleanupSeconds) * time.Second
	cfg.AutoSyncInterval = time.Duration(cfg.AutoSyncSeconds) * time.Second

	return &cfg, nil
}
