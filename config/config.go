package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log      Logger         `mapstructure:"logger"`
	DB       Database       `mapstructure:"database"`
	API      API            `mapstructure:"api"`
	Monitor  Monitor        `mapstructure:"monitor"`
	Bybit    Bybit          `mapstructure:"bybit"`
	Cache    Cache          `mapstructure:"cache"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Redis    Redis          `mapstructure:"redis"`
	Notifier Notifier       `mapstructure:"notifier"`
	CleanUp  CleanUp        `mapstructure:"clean_up"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port             int     `mapstructure:"port"`
	RequestPerSecond float64 `mapstructure:"request_per_second"`
	Burst            int     `mapstructure:"burst"`
}

// Monitor controls the TP/SL closing loop.
type Monitor struct {
	Interval           time.Duration `mapstructure:"interval"`
	MaxConcurrentFetch int           `mapstructure:"max_concurrent_fetch"`
	CycleTimeout       time.Duration `mapstructure:"cycle_timeout"`
	ConditionalClose   bool          `mapstructure:"conditional_close"`
}

type Bybit struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Category            string        `mapstructure:"category"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Burst               int           `mapstructure:"burst"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type TelegramConfig struct {
	BotToken                  string        `mapstructure:"bot_token"`
	ChatID                    string        `mapstructure:"chat_id"`
	WebhookURL                string        `mapstructure:"webhook_url"`
	AdminIDs                  []int64       `mapstructure:"admin_ids"`
	TimeoutDuration           time.Duration `mapstructure:"timeout_duration"`
	MaxGlobalRequestPerSecond int           `mapstructure:"max_global_request_per_second"`
	MaxUserRequestPerSecond   int           `mapstructure:"max_user_request_per_second"`
	RatelimitExpireDuration   time.Duration `mapstructure:"ratelimit_expire_duration"`
	RateLimitCleanupDuration  time.Duration `mapstructure:"rate_limit_cleanup_duration"`
}

type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Channel  string `mapstructure:"channel"`
}

type Notifier struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
}

type CleanUp struct {
	Cron          string        `mapstructure:"cron"`
	RetentionDays int           `mapstructure:"retention_days"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")

	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 5)
	viper.SetDefault("database.max_idle_conns", 1)

	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.request_per_second", 10)
	viper.SetDefault("api.burst", 30)

	viper.SetDefault("monitor.interval", 2*time.Second)
	viper.SetDefault("monitor.max_concurrent_fetch", 5)
	viper.SetDefault("monitor.cycle_timeout", 30*time.Second)
	viper.SetDefault("monitor.conditional_close", true)

	viper.SetDefault("bybit.base_url", "https://api.bybit.com")
	viper.SetDefault("bybit.timeout", 5*time.Second)
	viper.SetDefault("bybit.category", "linear")
	viper.SetDefault("bybit.max_request_per_minute", 600)
	viper.SetDefault("bybit.burst", 5)

	viper.SetDefault("cache.default_expiration", time.Minute)
	viper.SetDefault("cache.cleanup_interval", 5*time.Minute)

	viper.SetDefault("telegram.timeout_duration", 10*time.Second)
	viper.SetDefault("telegram.max_global_request_per_second", 30)
	viper.SetDefault("telegram.max_user_request_per_second", 1)
	viper.SetDefault("telegram.ratelimit_expire_duration", 10*time.Minute)
	viper.SetDefault("telegram.rate_limit_cleanup_duration", 5*time.Minute)

	viper.SetDefault("redis.channel", "positions:closed")
	viper.SetDefault("redis.pool_size", 5)

	viper.SetDefault("notifier.workers", 2)
	viper.SetDefault("notifier.queue_size", 256)
	viper.SetDefault("notifier.enqueue_timeout", 500*time.Millisecond)
	viper.SetDefault("notifier.send_timeout", 15*time.Second)

	viper.SetDefault("clean_up.cron", "@daily")
	viper.SetDefault("clean_up.retention_days", 90)
	viper.SetDefault("clean_up.timeout", 10*time.Minute)
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded:", err)
	}

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the monitor cannot run with.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
	}
	if c.Monitor.CycleTimeout <= 0 {
		return fmt.Errorf("monitor.cycle_timeout must be positive, got %s", c.Monitor.CycleTimeout)
	}
	if c.Monitor.MaxConcurrentFetch < 1 {
		return fmt.Errorf("monitor.max_concurrent_fetch must be at least 1, got %d", c.Monitor.MaxConcurrentFetch)
	}
	if c.Bybit.MaxRequestPerMinute < 1 {
		return fmt.Errorf("bybit.max_request_per_minute must be at least 1, got %d", c.Bybit.MaxRequestPerMinute)
	}
	if c.Notifier.Workers < 1 {
		return fmt.Errorf("notifier.workers must be at least 1, got %d", c.Notifier.Workers)
	}
	return nil
}
