package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress     string        `mapstructure:"SERVER_ADDRESS"`
	PostgresConn      string        `mapstructure:"POSTGRES_CONN"`
	PostgresUser      string        `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass      string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost      string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort      string        `mapstructure:"POSTGRES_PORT"`
	PostgresDB        string        `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL      string        `mapstructure:"MIGRATION_URL"`
	StorageDriver     string        `mapstructure:"STORAGE_DRIVER"`
	TokenStore        string        `mapstructure:"TOKEN_STORE"`
	Notifier          string        `mapstructure:"NOTIFIER"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	TokenTTLDays      int           `mapstructure:"TOKEN_TTL_DAYS"`
	ReminderOffsets   string        `mapstructure:"REMINDER_OFFSETS"`
	DailyJobsCron     string        `mapstructure:"DAILY_JOBS_CRON"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	PortalRateLimit   float64       `mapstructure:"PORTAL_RATE_LIMIT"`
	PortalRateBurst   int           `mapstructure:"PORTAL_RATE_BURST"`
	MetricsNamespace  string        `mapstructure:"METRICS_NAMESPACE"`
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`

	// ReminderDays - разобранный REMINDER_OFFSETS, заполняется LoadConfig
	ReminderDays []int `mapstructure:"-"`
}

var keys = []string{
	"SERVER_ADDRESS", "POSTGRES_CONN", "POSTGRES_USERNAME", "POSTGRES_PASSWORD", "POSTGRES_HOST",
	"POSTGRES_PORT", "POSTGRES_DATABASE", "MIGRATION_URL", "STORAGE_DRIVER", "TOKEN_STORE", "NOTIFIER",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "TOKEN_TTL_DAYS", "REMINDER_OFFSETS", "DAILY_JOBS_CRON",
	"REQUEST_TIMEOUT", "PORTAL_RATE_LIMIT", "PORTAL_RATE_BURST", "METRICS_NAMESPACE", "WORKER_CONCURRENCY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("MIGRATION_URL", "file://db/migration")
	v.SetDefault("STORAGE_DRIVER", "postgres")
	v.SetDefault("TOKEN_STORE", "postgres")
	v.SetDefault("NOTIFIER", "log")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_TTL_DAYS", 30)
	v.SetDefault("REMINDER_OFFSETS", "10,3")
	v.SetDefault("DAILY_JOBS_CRON", "0 6 * * *")
	v.SetDefault("REQUEST_TIMEOUT", "5s")
	v.SetDefault("PORTAL_RATE_LIMIT", 2)
	v.SetDefault("PORTAL_RATE_BURST", 5)
	v.SetDefault("METRICS_NAMESPACE", "vendor_engagement")
	v.SetDefault("WORKER_CONCURRENCY", 5)
}

// LoadConfig загружает конфигурацию из файла app.env и переменных окружения
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)
	for _, key := range keys {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&cfg); err != nil {
		return
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	cfg.ReminderDays, err = cfg.Offsets()
	return
}

// Validate проверяет значения перечислений
func (c Config) Validate() error {
	if !oneOf(c.StorageDriver, "postgres", "memory") {
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if !oneOf(c.TokenStore, "postgres", "redis", "memory") {
		return fmt.Errorf("unsupported TOKEN_STORE %q", c.TokenStore)
	}
	if !oneOf(c.Notifier, "log", "asynq") {
		return fmt.Errorf("unsupported NOTIFIER %q", c.Notifier)
	}
	if c.StorageDriver == "memory" && c.TokenStore == "postgres" {
		return fmt.Errorf("TOKEN_STORE=postgres requires STORAGE_DRIVER=postgres")
	}
	if _, err := c.Offsets(); err != nil {
		return err
	}
	return nil
}

// UsesPostgres сообщает, нужен ли пул соединений с базой
func (c Config) UsesPostgres() bool {
	return c.StorageDriver == "postgres" || c.TokenStore == "postgres"
}

// UsesRedis сообщает, нужен ли клиент Redis
func (c Config) UsesRedis() bool {
	return c.TokenStore == "redis" || c.Notifier == "asynq"
}

// Offsets разбирает REMINDER_OFFSETS вида "10,3"
func (c Config) Offsets() ([]int, error) {
	var offsets []int
	for _, part := range strings.Split(c.ReminderOffsets, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid REMINDER_OFFSETS value %q", part)
		}
		offsets = append(offsets, n)
	}
	return offsets, nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
