package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/health"
	"github.com/saveitforlater/checkout/internal/messaging/kafka"
	"github.com/saveitforlater/checkout/internal/storage/memory"
	"github.com/saveitforlater/checkout/internal/storage/postgres"
	redisstore "github.com/saveitforlater/checkout/internal/storage/redis"
)

// Dependencies — собранные зависимости приложения.
type Dependencies struct {
	Orders    domain.OrderRepository
	Products  domain.ProductRepository
	Carts     domain.CartStore
	CartCache domain.CartCache
	Outbox    domain.OutboxRepository

	Checks *health.Registry

	pg       *postgres.Store
	redis    *goredis.Client
	producer *kafka.Producer
}

// Producer возвращает kafka producer или nil, если Kafka не настроен.
func (d *Dependencies) Producer() *kafka.Producer {
	return d.producer
}

// Close освобождает внешние подключения.
func (d *Dependencies) Close(logger *log.Entry) {
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.pg != nil {
		if err := d.pg.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

// BuildDependencies поднимает хранилища и внешние подключения по конфигурации.
// Пустой DSN означает in-memory хранилище; redis и kafka опциональны.
func BuildDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	deps := &Dependencies{Checks: health.NewRegistry()}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		deps.pg = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Products = postgres.NewProductRepository(store)
		deps.Carts = postgres.NewCartRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Checks.Register("postgres", store.Ping)
		logger.Info("using postgres storage")
	} else {
		store := memory.NewStore()
		deps.Orders = memory.NewOrderRepository(store)
		deps.Products = memory.NewProductRepository(store)
		deps.Carts = memory.NewCartStore(store)
		deps.Outbox = memory.NewOutboxRepository()
		logger.Warn("postgres DSN is not set, using in-memory storage")
	}

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis is unreachable, continuing without cart cache")
			_ = client.Close()
		} else {
			deps.redis = client
			deps.CartCache = redisstore.NewCartCache(client)
			deps.Checks.Register("redis", func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
			logger.WithField("addr", cfg.RedisAddr).Info("redis cart cache initialized")
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			deps.producer = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}

	return deps, nil
}
