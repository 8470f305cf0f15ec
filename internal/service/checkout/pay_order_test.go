package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/service/checkout"
	"github.com/saveitforlater/checkout/internal/service/gateway"
)

func (f *fixture) createPendingOrder(t *testing.T, customerID string, method domain.PaymentMethod) domain.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), customer(customerID), checkout.CreateOrderInput{
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestPayOrder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "product-1", 100, 5)
	f.seedCart(t, "customer-1", domain.CartLine{ProductID: "product-1", Qty: 2})
	order := f.createPendingOrder(t, "customer-1", domain.PaymentMethodCreditCard)

	paid, err := f.svc.PayOrder(ctx, customer("customer-1"), order.ID, validCard())
	if err != nil {
		t.Fatalf("pay order failed: %v", err)
	}

	if paid.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed order, got %s", paid.Status)
	}
	if paid.Payment.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", paid.Payment.Status)
	}
	if paid.Payment.TransactionRef == "" {
		t.Fatal("completed payment must carry a transaction ref")
	}
	if !paid.StockCommitted {
		t.Fatal("paid order must have stock committed")
	}
	if !f.gateway.LastAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("gateway must see the order total, got %s", f.gateway.LastAmount)
	}

	if got := f.stockOf(t, "product-1"); got != 3 {
		t.Fatalf("expected stock 3 after payment, got %d", got)
	}

	cart, err := f.carts.Get(ctx, "customer-1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatal("cart must be cleared after payment")
	}

	types := make(map[string]int)
	for _, msg := range f.pendingEvents(t) {
		types[msg.EventType]++
	}
	if types["payment.completed"] != 1 || types["order.confirmed"] != 1 {
		t.Fatalf("expected payment.completed and order.confirmed events, got %v", types)
	}
}

func TestPayOrder_Declined(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "product-1", 100, 5)
	f.seedCart(t, "customer-1", domain.CartLine{ProductID: "product-1", Qty: 1})
	order := f.createPendingOrder(t, "customer-1", domain.PaymentMethodCreditCard)

	f.gateway.Result = gateway.AuthorizationResult{
		Status:       domain.PaymentStatusFailed,
		CardBrand:    gateway.BrandVisa,
		CardLastFour: "0000",
	}

	// Отказ шлюза — не ошибка, а состояние.
	declined, err := f.svc.PayOrder(ctx, customer("customer-1"), order.ID, validCard())
	if err != nil {
		t.Fatalf("declined payment must not be an error: %v", err)
	}
	if declined.Payment.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", declined.Payment.Status)
	}
	if declined.Status != domain.OrderStatusPending {
		t.Fatalf("order must stay pending after decline, got %s", declined.Status)
	}
	if got := f.stockOf(t, "product-1"); got != 5 {
		t.Fatalf("stock must be untouched after decline, got %d", got)
	}

	cart, err := f.carts.Get(ctx, "customer-1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if cart.IsEmpty() {
		t.Fatal("cart must survive a declined payment")
	}

	types := make(map[string]int)
	for _, msg := range f.pendingEvents(t) {
		types[msg.EventType]++
	}
	if types["payment.failed"] != 1 {
		t.Fatalf("expected payment.failed event, got %v", types)
	}
}

func TestPayOrder_GatewayErrorReleasesPayment(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "product-1", 100, 5)
	f.seedCart(t, "customer-1", domain.CartLine{ProductID: "product-1", Qty: 1})
	order := f.createPendingOrder(t, "customer-1", domain.PaymentMethodCreditCard)

	gatewayDown := errors.New("gateway unavailable")
	f.gateway.Err = gatewayDown

	_, err := f.svc.PayOrder(ctx, customer("customer-1"), order.ID, validCard())
	if !errors.Is(err, gatewayDown) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	// Платёж возвращён в pending — оплату можно повторить.
	stored, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if stored.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("payment must be released to pending, got %s", stored.Payment.Status)
	}

	f.gateway.Err = nil
	if _, err := f.svc.PayOrder(ctx, customer("customer-1"), order.ID, validCard()); err != nil {
		t.Fatalf("retry after gateway recovery failed: %v", err)
	}
}

func TestPayOrder_Preconditions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "product-1", 100, 5)

	f.seedCart(t, "customer-1", domain.CartLine{ProductID: "product-1", Qty: 1})
	cardOrder := f.createPendingOrder(t, "customer-1", domain.PaymentMethodCreditCard)

	f.seedCart(t, "customer-2", domain.CartLine{ProductID: "product-1", Qty: 1})
	codOrder := f.createPendingOrder(t, "customer-2", domain.PaymentMethodCashOnDelivery)

	// Невалидные реквизиты отклоняются до любых мутаций.
	badCard := validCard()
	badCard.Number = "1234"
	if _, err := f.svc.PayOrder(ctx, customer("customer-1"), cardOrder.ID, badCard); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Чужой заказ неотличим от несуществующего.
	if _, err := f.svc.PayOrder(ctx, customer("customer-2"), cardOrder.ID, validCard()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}

	// Оплата строго владельческая: административного обхода нет.
	if _, err := f.svc.PayOrder(ctx, admin("admin-1"), cardOrder.ID, validCard()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for admin payment, got %v", err)
	}
	if f.gateway.AuthorizeCalls != 0 {
		t.Fatalf("gateway must not be called before ownership check, got %d calls", f.gateway.AuthorizeCalls)
	}

	// Не-карточный метод не проходит через шлюз.
	if _, err := f.svc.PayOrder(ctx, customer("customer-2"), codOrder.ID, validCard()); !errors.Is(err, domain.ErrPaymentMethodNotCard) {
		t.Fatalf("expected ErrPaymentMethodNotCard, got %v", err)
	}

	// Уже оплаченный заказ не оплачивается повторно.
	if _, err := f.svc.PayOrder(ctx, customer("customer-1"), cardOrder.ID, validCard()); err != nil {
		t.Fatalf("pay order failed: %v", err)
	}
	_, err := f.svc.PayOrder(ctx, customer("customer-1"), cardOrder.ID, validCard())
	var transitionErr *domain.IllegalTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected IllegalTransitionError for paid order, got %v", err)
	}
}

func TestPayOrder_InsufficientStockAtPayment(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "product-1", 100, 2)
	f.seedCart(t, "customer-1", domain.CartLine{ProductID: "product-1", Qty: 2})
	order := f.createPendingOrder(t, "customer-1", domain.PaymentMethodCreditCard)

	// Сток уехал между созданием заказа и оплатой.
	if err := f.products.AdjustStock(ctx, "product-1", -1); err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}

	_, err := f.svc.PayOrder(ctx, customer("customer-1"), order.ID, validCard())
	if _, ok := domain.IsInsufficientStock(err); !ok {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if f.gateway.AuthorizeCalls != 0 {
		t.Fatalf("gateway must not be called when stock is short, got %d calls", f.gateway.AuthorizeCalls)
	}
}

func TestPayOrder_ConcurrentPaysExactlyOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "product-1", 100, 5)
	f.seedCart(t, "customer-1", domain.CartLine{ProductID: "product-1", Qty: 1})
	order := f.createPendingOrder(t, "customer-1", domain.PaymentMethodCreditCard)

	const contenders = 8
	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PayOrder(ctx, customer("customer-1"), order.ID, validCard())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful payment, got %d", succeeded)
	}

	if got := f.stockOf(t, "product-1"); got != 4 {
		t.Fatalf("stock must be decremented exactly once, got %d", got)
	}
	stored, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if stored.Payment.Status != domain.PaymentStatusCompleted || stored.Status != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected final state: order %s, payment %s", stored.Status, stored.Payment.Status)
	}
}
