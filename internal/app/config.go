package app

import (
	"os"
	"strings"
	"time"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес API сервиса.
	HTTPAddr string
	// MetricsAddr — адрес служебного сервера (метрики, health).
	MetricsAddr string
	// PostgresDSN пустой — работаем на in-memory хранилище.
	PostgresDSN string
	// RedisAddr пустой — кэш корзин отключён.
	RedisAddr string
	// KafkaBrokers пустой — события остаются в outbox без публикации.
	KafkaBrokers []string

	OutboxPollInterval time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		OutboxPollInterval: time.Second,
	}
}

// ConfigFromEnv собирает конфигурацию из переменных окружения CHECKOUT_*.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("CHECKOUT_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("CHECKOUT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("CHECKOUT_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("CHECKOUT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CHECKOUT_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CHECKOUT_OUTBOX_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.OutboxPollInterval = d
		}
	}
	return cfg
}
