package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log        Logger     `mapstructure:"logger"`
	DB         Database   `mapstructure:"database"`
	API        API        `mapstructure:"api"`
	Cache      Cache      `mapstructure:"cache"`
	Quote      Quote      `mapstructure:"quote"`
	Reconciler Reconciler `mapstructure:"reconciler"`
	Market     Market     `mapstructure:"market"`
	Reference  Reference  `mapstructure:"reference"`
	Notifier   Notifier   `mapstructure:"notifier"`
	Redis      Redis      `mapstructure:"redis"`
	Kafka      Kafka      `mapstructure:"kafka"`
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

// DSN returns the URL form used by golang-migrate and lib/pq.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
		d.SSLMode)
}

type API struct {
	Port           int     `mapstructure:"port"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type Quote struct {
	BaseURL             string        `mapstructure:"base_url"`
	SearchBaseURL       string        `mapstructure:"search_base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	HistoryFrom         string        `mapstructure:"history_from"`
	CircuitCacheTTL     time.Duration `mapstructure:"circuit_cache_ttl"`
	HolidayCacheTTL     time.Duration `mapstructure:"holiday_cache_ttl"`
}

type Reconciler struct {
	Interval   time.Duration `mapstructure:"interval"`
	FetchDelay time.Duration `mapstructure:"fetch_delay"`
}

type Market struct {
	TimeZone           string `mapstructure:"time_zone"`
	Open               string `mapstructure:"open"`
	Close              string `mapstructure:"close"`
	HolidayRefreshCron string `mapstructure:"holiday_refresh_cron"`
	SessionStartCron   string `mapstructure:"session_start_cron"`
}

type Reference struct {
	Source string `mapstructure:"source"`
}

type Notifier struct {
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

const (
	NotifierPostgres = "postgres"
	NotifierRedis    = "redis"
	NotifierNone     = "none"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "portfolio")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.log_level", "Warn")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit", 10)
	v.SetDefault("api.rate_limit_burst", 30)

	v.SetDefault("cache.default_expiration", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("quote.base_url", "https://api-prod-v21.strike.money")
	v.SetDefault("quote.search_base_url", "https://api-prod.strike.money")
	v.SetDefault("quote.timeout", 10*time.Second)
	v.SetDefault("quote.max_request_per_minute", 60)
	v.SetDefault("quote.history_from", "2023-11-09T09:15:59+05:30")
	v.SetDefault("quote.circuit_cache_ttl", 5*time.Minute)
	v.SetDefault("quote.holiday_cache_ttl", 24*time.Hour)

	v.SetDefault("reconciler.interval", 60*time.Second)
	v.SetDefault("reconciler.fetch_delay", 1500*time.Millisecond)

	v.SetDefault("market.time_zone", "Asia/Kolkata")
	v.SetDefault("market.open", "09:15")
	v.SetDefault("market.close", "15:30")
	v.SetDefault("market.holiday_refresh_cron", "0 8 * * *")
	v.SetDefault("market.session_start_cron", "15 9 * * 1-5")

	v.SetDefault("reference.source", "data/reference.csv")

	v.SetDefault("notifier.driver", NotifierPostgres)
	v.SetDefault("notifier.channel", "portfolio_changes")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("kafka.topic", "portfolio-events")
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
