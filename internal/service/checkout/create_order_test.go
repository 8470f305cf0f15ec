package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/messaging/kafka"
	"github.com/saveitforlater/checkout/internal/service/checkout"
	"github.com/saveitforlater/checkout/internal/service/gateway"
	"github.com/saveitforlater/checkout/internal/service/stock"
	"github.com/saveitforlater/checkout/internal/storage/memory"
)

func TestCreateOrder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "product-1", 100, 10)
	f.seedProduct(t, "product-2", 25, 3)
	f.seedCart(t, "customer-1",
		domain.CartLine{ProductID: "product-1", Qty: 2, PriceAtAdd: decimal.NewFromInt(90)},
		domain.CartLine{ProductID: "product-2", Qty: 1},
	)

	order, err := f.svc.CreateOrder(ctx, customer("customer-1"), checkout.CreateOrderInput{
		CustomerEmail: "ivan@example.com",
		PaymentMethod: domain.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if order.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", order.Payment.Status)
	}
	// 90*2 (цена на момент добавления) + 25*1 (каталожная).
	if want := decimal.NewFromInt(205); !order.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, order.Total)
	}
	if !order.Payment.Amount.Equal(order.Total) {
		t.Fatalf("payment amount %s must equal total %s", order.Payment.Amount, order.Total)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if order.Number == "" || order.ID == "" {
		t.Fatal("order must get id and number")
	}

	// Создание заказа сток не списывает.
	if got := f.stockOf(t, "product-1"); got != 10 {
		t.Fatalf("stock must be untouched, got %d", got)
	}

	// Корзина остаётся до успешной оплаты.
	cart, err := f.carts.Get(ctx, "customer-1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if cart.IsEmpty() {
		t.Fatal("cart must survive order creation")
	}

	events := f.pendingEvents(t)
	if len(events) != 1 || events[0].EventType != "order.created" {
		t.Fatalf("expected a single order.created event, got %+v", events)
	}

	// Payload события — конверт с идентичностью заказа и метаданными.
	var event kafka.OrderEvent
	if err := json.Unmarshal(events[0].Payload, &event); err != nil {
		t.Fatalf("unmarshal event payload failed: %v", err)
	}
	if event.EventType != kafka.EventTypeOrderCreated {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	if event.OrderID != order.ID || event.OrderNumber != order.Number || event.CustomerID != "customer-1" {
		t.Fatalf("event must identify the order: %+v", event)
	}
	if event.Status != string(domain.OrderStatusPending) {
		t.Fatalf("expected pending status in event, got %s", event.Status)
	}
	if event.Metadata["total"] != "205" {
		t.Fatalf("expected total metadata, got %v", event.Metadata)
	}

	stored, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if !stored.Total.Equal(order.Total) || len(stored.Items) != 2 {
		t.Fatalf("persisted aggregate mismatch: %+v", stored)
	}
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), customer("customer-1"), checkout.CreateOrderInput{
		PaymentMethod: domain.PaymentMethodCreditCard,
	})
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "product-1", 100, 1)
	f.seedCart(t, "customer-1", domain.CartLine{ProductID: "product-1", Qty: 2})

	_, err := f.svc.CreateOrder(ctx, customer("customer-1"), checkout.CreateOrderInput{
		PaymentMethod: domain.PaymentMethodCreditCard,
	})
	stockErr, ok := domain.IsInsufficientStock(err)
	if !ok {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 2 || stockErr.Available != 1 {
		t.Fatalf("unexpected details: %+v", stockErr)
	}

	// Ни заказа, ни событий после отказа.
	orders, err := f.orders.ListByCustomer(ctx, "customer-1", 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("no order must be persisted, got %d", len(orders))
	}
	if events := f.pendingEvents(t); len(events) != 0 {
		t.Fatalf("no events expected, got %d", len(events))
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, customer(""), checkout.CreateOrderInput{
		PaymentMethod: domain.PaymentMethodCreditCard,
	})
	if !domain.IsValidation(err) || !errors.Is(err, domain.ErrCustomerRequired) {
		t.Fatalf("expected customer-required validation error, got %v", err)
	}

	_, err = f.svc.CreateOrder(ctx, customer("customer-1"), checkout.CreateOrderInput{
		PaymentMethod: domain.PaymentMethod("crypto"),
	})
	if !domain.IsValidation(err) || !errors.Is(err, domain.ErrPaymentMethodUnknown) {
		t.Fatalf("expected unknown-method validation error, got %v", err)
	}
}

// collidingOrders отклоняет первые rejects вызовов Create как коллизию
// уникальности, запоминая номер каждой попытки.
type collidingOrders struct {
	domain.OrderRepository
	rejects int
	numbers []string
}

func (r *collidingOrders) Create(ctx context.Context, order domain.Order) error {
	r.numbers = append(r.numbers, order.Number)
	if len(r.numbers) <= r.rejects {
		return domain.ErrOrderAlreadyExists
	}
	return r.OrderRepository.Create(ctx, order)
}

func newCollidingFixture(t *testing.T, rejects int) (*checkout.Service, *collidingOrders) {
	t.Helper()

	store := memory.NewStore()
	orders := &collidingOrders{OrderRepository: memory.NewOrderRepository(store), rejects: rejects}
	products := memory.NewProductRepository(store)
	carts := memory.NewCartStore(store)

	err := products.Create(context.Background(), domain.Product{
		ID:            "product-1",
		SKU:           "SKU-product-1",
		Name:          "Product product-1",
		Price:         decimal.NewFromInt(100),
		StockQuantity: 5,
		Version:       1,
	})
	if err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
	err = carts.Save(context.Background(), domain.Cart{
		OwnerID: "customer-1",
		Lines:   []domain.CartLine{{ProductID: "product-1", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("seed cart failed: %v", err)
	}

	svc := checkout.NewService(checkout.Deps{
		Orders:   orders,
		Products: products,
		Carts:    carts,
		Ledger:   stock.NewLedger(products, orders, nil),
		Gateway:  gateway.NewMockAuthorizer(),
		Outbox:   memory.NewOutboxRepository(),
	})
	return svc, orders
}

func TestCreateOrder_RegeneratesNumberOnCollision(t *testing.T) {
	svc, orders := newCollidingFixture(t, 1)

	order, err := svc.CreateOrder(context.Background(), customer("customer-1"), checkout.CreateOrderInput{
		PaymentMethod: domain.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("create order must survive a number collision: %v", err)
	}
	if len(orders.numbers) != 2 {
		t.Fatalf("expected a retry with a fresh number, got %d attempts", len(orders.numbers))
	}

	if _, err := orders.Get(context.Background(), order.ID); err != nil {
		t.Fatalf("retried order must be persisted: %v", err)
	}
}

func TestCreateOrder_ExhaustedNumberCollisions(t *testing.T) {
	svc, orders := newCollidingFixture(t, 100)

	_, err := svc.CreateOrder(context.Background(), customer("customer-1"), checkout.CreateOrderInput{
		PaymentMethod: domain.PaymentMethodCreditCard,
	})
	if !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists after exhausted retries, got %v", err)
	}
	if len(orders.numbers) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(orders.numbers))
	}
}

func TestCreateOrder_CashOnDelivery(t *testing.T) {
	f := newServiceFixture(t)
	f.seedProduct(t, "product-1", 50, 5)
	f.seedCart(t, "customer-1", domain.CartLine{ProductID: "product-1", Qty: 1})

	order, err := f.svc.CreateOrder(context.Background(), customer("customer-1"), checkout.CreateOrderInput{
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Payment.Method != domain.PaymentMethodCashOnDelivery {
		t.Fatalf("unexpected method: %s", order.Payment.Method)
	}
}
