package checkout

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/messaging/kafka"
	"github.com/saveitforlater/checkout/internal/service/gateway"
)

// SetOrderStatus — административная перестановка статуса заказа.
// Машину переходов НЕ применяет: это escape hatch для операторов
// (вернуть ошибочно отменённый заказ, починить зависшее состояние).
// Обычный жизненный цикл идёт через CreateOrder/PayOrder.
// Отмена или возврат заказа с уже списанным стоком возвращает
// позиции на склад.
func (s *Service) SetOrderStatus(ctx context.Context, principal domain.Principal, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !principal.IsAdmin() {
		return domain.Order{}, domain.ErrNotAuthorized
	}
	if !domain.KnownOrderStatus(status) {
		return domain.Order{}, domain.NewValidationError(&domain.IllegalTransitionError{
			Entity: "order",
			To:     string(status),
		})
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	from := order.Status
	if from == status {
		return order, nil
	}

	var restock bool
	err = s.saveWithRetry(ctx, &order, func(o *domain.Order) error {
		restock = o.StockCommitted && releasesStock(status)
		o.Status = status
		if restock {
			o.StockCommitted = false
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if restock {
		s.restockItems(ctx, &order)
	}

	s.emitEvent(ctx, &order, kafka.EventTypeOrderStatusChanged, map[string]interface{}{
		"from":      string(from),
		"restocked": restock,
	})
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     string(from),
		"to":       string(status),
		"admin_id": principal.ID,
	}).Info("order status overridden")

	return order, nil
}

// SetPaymentStatus — административная установка статуса платежа.
// Основной сценарий — подтверждение оплаты cash-on-delivery: переход в
// completed синтезирует transaction ref, списывает сток (идемпотентно)
// и подтверждает заказ. Повторный вызов для завершённого платежа — no-op.
func (s *Service) SetPaymentStatus(ctx context.Context, principal domain.Principal, orderID string, status domain.PaymentStatus) (domain.Order, error) {
	if !principal.IsAdmin() {
		return domain.Order{}, domain.ErrNotAuthorized
	}
	if !domain.KnownPaymentStatus(status) {
		return domain.Order{}, domain.NewValidationError(&domain.IllegalTransitionError{
			Entity: "payment",
			To:     string(status),
		})
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Payment.Status == status {
		return order, nil
	}

	if status == domain.PaymentStatusCompleted {
		return s.confirmPaymentManually(ctx, principal, order)
	}

	from := order.Payment.Status
	err = s.saveWithRetry(ctx, &order, func(o *domain.Order) error {
		o.Payment.Status = status
		o.Payment.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.emitEvent(ctx, &order, kafka.EventTypePaymentStatusSet, map[string]interface{}{
		"from": string(from),
		"to":   string(status),
	})
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     string(from),
		"to":       string(status),
		"admin_id": principal.ID,
	}).Info("payment status set")

	return order, nil
}

// releasesStock сообщает, возвращает ли статус списанный сток на склад.
func releasesStock(status domain.OrderStatus) bool {
	return status == domain.OrderStatusCancelled || status == domain.OrderStatusRefunded
}

// restockItems возвращает позиции заказа на склад через Stock Ledger.
// Best effort: агрегат уже сохранён со сброшенным StockCommitted,
// неуспех отдельной позиции логируется и не откатывает перестановку.
func (s *Service) restockItems(ctx context.Context, order *domain.Order) {
	for _, item := range order.Items {
		if err := s.ledger.Adjust(ctx, item.ProductID, item.Qty); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
				"qty":        item.Qty,
			}).Error("restock failed")
		}
	}
}

// confirmPaymentManually завершает платёж без шлюза (cash on delivery,
// оффлайн-сверка). Повторяет успешную ветку PayOrder: re-reserve,
// completed-платёж, подтверждение заказа, однократное списание стока.
func (s *Service) confirmPaymentManually(ctx context.Context, principal domain.Principal, order domain.Order) (domain.Order, error) {
	if !order.StockCommitted {
		if err := s.ledger.ReserveItems(ctx, order.Items); err != nil {
			return domain.Order{}, err
		}
	}

	now := time.Now().UTC()
	order.Payment.Status = domain.PaymentStatusCompleted
	if order.Payment.TransactionRef == "" {
		order.Payment.TransactionRef = gateway.SynthesizeTransactionRef()
	}
	if order.Payment.Gateway == "" {
		order.Payment.Gateway = gateway.GatewayName
	}
	order.Payment.PaidAt = now
	order.Payment.UpdatedAt = now

	if order.Status == domain.OrderStatusPending {
		order.Status = domain.OrderStatusConfirmed
	}
	order.UpdatedAt = now

	if order.StockCommitted {
		// Сток уже списан ранее: сохраняем только агрегат.
		if err := s.orders.Save(ctx, order); err != nil {
			return domain.Order{}, err
		}
		order.Version++
	} else if err := s.ledger.Commit(ctx, &order); err != nil {
		if s.metrics != nil && domain.IsContention(err) {
			s.metrics.RecordStockConflict()
		}
		return domain.Order{}, err
	}

	s.invalidateCart(ctx, order.CustomerID)

	if s.metrics != nil {
		s.metrics.RecordOrderConfirmed()
		s.metrics.RecordPaymentOutcome("completed")
	}
	s.emitEvent(ctx, &order, kafka.EventTypePaymentCompleted, map[string]interface{}{
		"transaction_ref": order.Payment.TransactionRef,
		"amount":          order.Payment.Amount.String(),
		"manual":          true,
	})
	s.emitEvent(ctx, &order, kafka.EventTypeOrderConfirmed, map[string]interface{}{
		"total": order.Total.String(),
	})

	s.logger.WithFields(log.Fields{
		"order_id":        order.ID,
		"transaction_ref": order.Payment.TransactionRef,
		"admin_id":        principal.ID,
	}).Info("payment confirmed manually, order confirmed")

	return order, nil
}
