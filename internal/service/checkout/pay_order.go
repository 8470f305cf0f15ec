package checkout

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/messaging/kafka"
	"github.com/saveitforlater/checkout/internal/service/gateway"
)

// PayOrder проводит карточную оплату pending-заказа владельца.
//
// Защита от двойной оплаты — CAS-переход платежа pending -> processing
// через optimistic locking агрегата: из двух конкурентных вызовов ровно
// один выигрывает переход, проигравший перечитывает заказ и видит
// не-pending платёж. Отклонённая карта — нормальный исход: платёж
// уходит в failed, заказ остаётся pending, ошибка не возвращается.
func (s *Service) PayOrder(ctx context.Context, principal domain.Principal, orderID string, card gateway.CardDetails) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration("pay_order", time.Since(start))
		}
	}()

	// Реквизиты отклоняются до любых мутаций состояния.
	if err := card.Validate(); err != nil {
		return domain.Order{}, domain.NewValidationError(err)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	// Оплата доступна только владельцу: административного обхода нет,
	// admin не проводит карточный платёж от имени клиента.
	if order.CustomerID != principal.ID {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	if order.Status != domain.OrderStatusPending {
		return domain.Order{}, &domain.IllegalTransitionError{
			Entity: "order",
			From:   string(order.Status),
			To:     string(domain.OrderStatusConfirmed),
		}
	}
	if !order.Payment.Method.IsCard() {
		return domain.Order{}, domain.ErrPaymentMethodNotCard
	}
	if order.Payment.Status != domain.PaymentStatusPending {
		return domain.Order{}, domain.ErrPaymentNotPending
	}

	// Доступность могла измениться с момента создания заказа.
	if err := s.ledger.ReserveItems(ctx, order.Items); err != nil {
		if s.metrics != nil {
			s.metrics.RecordCheckoutFailed()
		}
		return domain.Order{}, err
	}

	// Захват платежа: проигравший CAS увидит processing/completed после
	// перечитывания и уйдёт с ErrPaymentNotPending.
	if err := s.claimPayment(ctx, &order); err != nil {
		return domain.Order{}, err
	}

	result, err := s.gateway.Authorize(order.Total, card)
	if err != nil {
		// Шлюз не дал ни успеха, ни отказа: возвращаем платёж в pending,
		// чтобы оплату можно было повторить.
		s.releasePayment(ctx, &order)
		return domain.Order{}, err
	}

	if result.Status != domain.PaymentStatusCompleted {
		return s.settleDeclined(ctx, order, result)
	}
	return s.settleCompleted(ctx, order, result)
}

// claimPayment переводит платёж pending -> processing через CAS агрегата.
func (s *Service) claimPayment(ctx context.Context, order *domain.Order) error {
	err := s.saveWithRetry(ctx, order, func(o *domain.Order) error {
		if o.Payment.Status != domain.PaymentStatusPending {
			return domain.ErrPaymentNotPending
		}
		if err := domain.TransitionPayment(&o.Payment, domain.PaymentStatusProcessing); err != nil {
			return err
		}
		o.Payment.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("payment claim failed")
	}
	return err
}

// releasePayment возвращает захваченный платёж в pending, чтобы оплату
// можно было повторить. Перечитывает персистентное состояние: в памяти
// платёж мог уже уйти дальше processing. Best effort — при неудаче платёж
// останется в processing до ручного вмешательства.
func (s *Service) releasePayment(ctx context.Context, order *domain.Order) {
	fresh, err := s.orders.Get(ctx, order.ID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("payment release failed")
		return
	}
	*order = fresh

	err = s.saveWithRetry(ctx, order, func(o *domain.Order) error {
		if o.Payment.Status != domain.PaymentStatusProcessing {
			return domain.ErrPaymentNotPending
		}
		o.Payment.Status = domain.PaymentStatusPending
		o.Payment.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("payment release failed")
	}
}

// settleCompleted применяет успешную авторизацию: заполняет платёж,
// подтверждает заказ и атомарно списывает сток с очисткой корзины.
func (s *Service) settleCompleted(ctx context.Context, order domain.Order, result gateway.AuthorizationResult) (domain.Order, error) {
	now := time.Now().UTC()

	if err := domain.TransitionPayment(&order.Payment, domain.PaymentStatusCompleted); err != nil {
		return domain.Order{}, err
	}
	order.Payment.TransactionRef = result.TransactionRef
	order.Payment.CardBrand = result.CardBrand
	order.Payment.CardLastFour = result.CardLastFour
	order.Payment.Gateway = gateway.GatewayName
	order.Payment.PaidAt = result.AuthorizedAt
	order.Payment.UpdatedAt = now

	if err := domain.TransitionOrder(&order, domain.OrderStatusConfirmed); err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = now

	// Списание стока, сохранение агрегата и очистка корзины — одна
	// единица работы; сбой откатывает заказ в памяти к processing-платежу.
	if err := s.ledger.Commit(ctx, &order); err != nil {
		if s.metrics != nil {
			if domain.IsContention(err) {
				s.metrics.RecordStockConflict()
			}
			s.metrics.RecordCheckoutFailed()
		}
		s.logger.WithError(err).WithField("order_id", order.ID).Error("stock commit failed")
		s.releasePayment(ctx, &order)
		return domain.Order{}, err
	}

	s.invalidateCart(ctx, order.CustomerID)

	if s.metrics != nil {
		s.metrics.RecordOrderConfirmed()
		s.metrics.RecordPaymentOutcome("completed")
	}
	s.emitEvent(ctx, &order, kafka.EventTypePaymentCompleted, map[string]interface{}{
		"transaction_ref": order.Payment.TransactionRef,
		"card_brand":      order.Payment.CardBrand,
		"amount":          order.Payment.Amount.String(),
	})
	s.emitEvent(ctx, &order, kafka.EventTypeOrderConfirmed, map[string]interface{}{
		"total": order.Total.String(),
	})

	s.logger.WithFields(log.Fields{
		"order_id":        order.ID,
		"transaction_ref": order.Payment.TransactionRef,
		"amount":          order.Payment.Amount.String(),
	}).Info("payment completed, order confirmed")

	return order, nil
}

// settleDeclined фиксирует отказ шлюза: платёж -> failed, заказ остаётся
// pending, сток не тронут. Ошибки нет — отказ возвращается состоянием.
func (s *Service) settleDeclined(ctx context.Context, order domain.Order, result gateway.AuthorizationResult) (domain.Order, error) {
	err := s.saveWithRetry(ctx, &order, func(o *domain.Order) error {
		if err := domain.TransitionPayment(&o.Payment, domain.PaymentStatusFailed); err != nil {
			return err
		}
		o.Payment.CardBrand = result.CardBrand
		o.Payment.CardLastFour = result.CardLastFour
		o.Payment.Gateway = gateway.GatewayName
		o.Payment.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentOutcome("failed")
	}
	s.emitEvent(ctx, &order, kafka.EventTypePaymentFailed, map[string]interface{}{
		"card_brand": order.Payment.CardBrand,
		"amount":     order.Payment.Amount.String(),
	})

	s.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"card_brand": order.Payment.CardBrand,
	}).Warn("payment declined by gateway")

	return order, nil
}
