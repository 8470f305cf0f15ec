package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/messaging/kafka"
)

// CreateOrderInput — данные оформления заказа из корзины вызывающего.
type CreateOrderInput struct {
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	CustomerEmail   string
	CustomerPhone   string
	Notes           string
	PaymentMethod   domain.PaymentMethod
}

func (in CreateOrderInput) validate() error {
	var errs []error
	if !domain.KnownPaymentMethod(in.PaymentMethod) {
		errs = append(errs, domain.ErrPaymentMethodUnknown)
	}
	return domain.NewValidationError(errs...)
}

// CreateOrder оформляет заказ из корзины principal: замораживает позиции
// по цене на момент добавления, создаёт pending-платёж и сохраняет агрегат.
// Сток на этом шаге НЕ списывается — только сверяется доступность.
func (s *Service) CreateOrder(ctx context.Context, principal domain.Principal, in CreateOrderInput) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration("create_order", time.Since(start))
		}
	}()

	if principal.ID == "" {
		return domain.Order{}, domain.NewValidationError(domain.ErrCustomerRequired)
	}
	if err := in.validate(); err != nil {
		return domain.Order{}, err
	}

	cart, err := s.loadCart(ctx, principal.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if cart.IsEmpty() {
		return domain.Order{}, domain.ErrEmptyCart
	}

	if err := s.ledger.Reserve(ctx, cart.Lines); err != nil {
		if s.metrics != nil {
			s.metrics.RecordCheckoutFailed()
		}
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(cart.Lines))
	total := decimal.Zero
	for _, line := range cart.Lines {
		product, err := s.products.Get(ctx, line.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		item := domain.SnapshotItem(line, product, now)
		items = append(items, item)
		total = total.Add(item.Subtotal)
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		Number:          domain.NewOrderNumber(now),
		CustomerID:      principal.ID,
		Status:          domain.OrderStatusPending,
		Total:           total,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		CustomerEmail:   in.CustomerEmail,
		CustomerPhone:   in.CustomerPhone,
		Notes:           in.Notes,
		Items:           items,
		Payment: domain.Payment{
			ID:        uuid.NewString(),
			Method:    in.PaymentMethod,
			Status:    domain.PaymentStatusPending,
			Amount:    total,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, domain.NewValidationError(errs...)
	}

	if err := s.createWithFreshNumber(ctx, &order); err != nil {
		if s.metrics != nil {
			s.metrics.RecordCheckoutFailed()
		}
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.emitEvent(ctx, &order, kafka.EventTypeOrderCreated, map[string]interface{}{
		"total":          order.Total.String(),
		"items_count":    len(order.Items),
		"payment_method": string(order.Payment.Method),
	})

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.Number,
		"customer_id":  order.CustomerID,
		"total":        order.Total.String(),
	}).Info("order created")

	return order, nil
}

// Суффикс номера заказа короткий и случайный, коллизии внутри дня возможны.
const createMaxAttempts = 3

// createWithFreshNumber сохраняет заказ, перегенерируя id и номер при
// коллизии уникальности; после исчерпания попыток отдаёт ошибку наружу.
func (s *Service) createWithFreshNumber(ctx context.Context, order *domain.Order) error {
	var err error
	for attempt := 0; attempt < createMaxAttempts; attempt++ {
		if attempt > 0 {
			s.logger.WithFields(log.Fields{
				"order_number": order.Number,
				"attempt":      attempt + 1,
			}).Warn("order identity collision, regenerating")
			order.ID = uuid.NewString()
			order.Number = domain.NewOrderNumber(order.CreatedAt)
		}
		err = s.orders.Create(ctx, *order)
		if err == nil || !errors.Is(err, domain.ErrOrderAlreadyExists) {
			return err
		}
	}
	return err
}
