// Package checkout реализует оркестратор оформления заказа: фасад над
// Stock Ledger, Pricing Snapshot, платёжным шлюзом и машиной статусов.
package checkout

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/messaging/kafka"
	"github.com/saveitforlater/checkout/internal/metrics"
	"github.com/saveitforlater/checkout/internal/service/gateway"
	"github.com/saveitforlater/checkout/internal/service/stock"
)

// Retry-политика сохранения агрегата при version conflict —
// та же схема exponential backoff, что и у списания стока.
const (
	saveMaxRetries = 3
	saveBaseDelay  = 10 * time.Millisecond
)

// Deps — зависимости оркестратора.
type Deps struct {
	Orders   domain.OrderRepository
	Products domain.ProductRepository
	Carts    domain.CartStore
	// CartCache опционален: cache-aside поверх Carts.
	CartCache domain.CartCache
	Ledger    *stock.Ledger
	Gateway   gateway.Authorizer
	Outbox    domain.OutboxRepository
	// Metrics nil отключает метрики (для тестов).
	Metrics *metrics.CheckoutMetrics
	Logger  *log.Entry
}

// Service — оркестратор checkout. Все операции принимают явный Principal:
// скрытого контекста текущего пользователя в ядре нет.
type Service struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	carts    domain.CartStore
	cache    domain.CartCache
	ledger   *stock.Ledger
	gateway  gateway.Authorizer
	outbox   domain.OutboxRepository
	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
}

// NewService конструирует оркестратор с зависимостями.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Service{
		orders:   deps.Orders,
		products: deps.Products,
		carts:    deps.Carts,
		cache:    deps.CartCache,
		ledger:   deps.Ledger,
		gateway:  deps.Gateway,
		outbox:   deps.Outbox,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// loadCart читает корзину владельца: сперва из кэша, затем из хранилища.
func (s *Service) loadCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if s.cache != nil {
		cart, err := s.cache.Get(ctx, ownerID)
		if err == nil {
			return cart, nil
		}
	}

	cart, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return domain.Cart{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cart); err != nil {
			s.logger.WithError(err).WithField("owner_id", ownerID).Warn("cart cache set failed")
		}
	}
	return cart, nil
}

// invalidateCart сбрасывает кэш корзины после очистки. Best effort:
// авторитетная запись уже удалена в той же единице работы, что и заказ.
func (s *Service) invalidateCart(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		s.logger.WithError(err).WithField("owner_id", ownerID).Warn("cart cache invalidation failed")
	}
}

// loadOwned возвращает заказ владельцу или администратору; для всех
// остальных — ErrOrderNotFound, чтобы не раскрывать существование заказа.
func (s *Service) loadOwned(ctx context.Context, principal domain.Principal, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.CustomerID != principal.ID && !principal.IsAdmin() {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// saveWithRetry сохраняет агрегат, перечитывая его и повторно применяя
// mutate при version conflict: три попытки с exponential backoff,
// затем ErrOrderVersionConflict наружу.
func (s *Service) saveWithRetry(ctx context.Context, order *domain.Order, mutate func(*domain.Order) error) error {
	for attempt := 0; attempt < saveMaxRetries; attempt++ {
		if err := mutate(order); err != nil {
			return err
		}
		order.UpdatedAt = time.Now().UTC()

		err := s.orders.Save(ctx, *order)
		if err == nil {
			order.Version++
			return nil
		}
		if !domain.IsVersionConflict(err) || attempt == saveMaxRetries-1 {
			return err
		}

		if s.metrics != nil {
			s.metrics.RecordVersionConflict()
		}
		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"attempt":  attempt + 1,
			"version":  order.Version,
		}).Warn("version conflict detected, retrying")

		fresh, loadErr := s.orders.Get(ctx, order.ID)
		if loadErr != nil {
			return loadErr
		}
		*order = fresh

		time.Sleep(saveBaseDelay * time.Duration(1<<uint(attempt)))
	}
	return domain.ErrOrderVersionConflict
}

// emitEvent кладёт событие заказа в transactional outbox.
// Payload — сериализованный kafka.OrderEvent: publisher отправляет его
// наружу как есть, без повторной упаковки.
func (s *Service) emitEvent(ctx context.Context, order *domain.Order, eventType kafka.EventType, metadata map[string]interface{}) {
	event := kafka.NewOrderEvent(eventType, order, metadata)
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}
