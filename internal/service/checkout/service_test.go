package checkout_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/service/checkout"
	"github.com/saveitforlater/checkout/internal/service/gateway"
	"github.com/saveitforlater/checkout/internal/service/stock"
	"github.com/saveitforlater/checkout/internal/storage/memory"
)

// fixture собирает оркестратор поверх in-memory хранилищ и mock-шлюза.
type fixture struct {
	svc      *checkout.Service
	store    *memory.Store
	orders   domain.OrderRepository
	products domain.ProductRepository
	carts    domain.CartStore
	outbox   domain.OutboxRepository
	gateway  *gateway.MockAuthorizer
}

func newServiceFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	orders := memory.NewOrderRepository(store)
	products := memory.NewProductRepository(store)
	carts := memory.NewCartStore(store)
	outbox := memory.NewOutboxRepository()
	mock := gateway.NewMockAuthorizer()

	svc := checkout.NewService(checkout.Deps{
		Orders:   orders,
		Products: products,
		Carts:    carts,
		Ledger:   stock.NewLedger(products, orders, nil),
		Gateway:  mock,
		Outbox:   outbox,
	})
	return &fixture{
		svc:      svc,
		store:    store,
		orders:   orders,
		products: products,
		carts:    carts,
		outbox:   outbox,
		gateway:  mock,
	}
}

func (f *fixture) seedProduct(t *testing.T, id string, price int64, stockQty int32) {
	t.Helper()
	err := f.products.Create(context.Background(), domain.Product{
		ID:            id,
		SKU:           "SKU-" + id,
		Name:          "Product " + id,
		Price:         decimal.NewFromInt(price),
		StockQuantity: stockQty,
		Version:       1,
	})
	if err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
}

func (f *fixture) seedCart(t *testing.T, ownerID string, lines ...domain.CartLine) {
	t.Helper()
	err := f.carts.Save(context.Background(), domain.Cart{OwnerID: ownerID, Lines: lines})
	if err != nil {
		t.Fatalf("seed cart failed: %v", err)
	}
}

func (f *fixture) pendingEvents(t *testing.T) []domain.OutboxMessage {
	t.Helper()
	msgs, err := f.outbox.PullPending(context.Background(), 100)
	if err != nil {
		t.Fatalf("pull outbox failed: %v", err)
	}
	return msgs
}

func (f *fixture) stockOf(t *testing.T, productID string) int32 {
	t.Helper()
	product, err := f.products.Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	return product.StockQuantity
}

func customer(id string) domain.Principal {
	return domain.Principal{ID: id, Role: domain.RoleCustomer}
}

func admin(id string) domain.Principal {
	return domain.Principal{ID: id, Role: domain.RoleAdmin}
}

func validCard() gateway.CardDetails {
	return gateway.CardDetails{
		Number:     "4242424242424242",
		HolderName: "IVAN PETROV",
		Expiry:     "12/28",
		CVV:        "123",
	}
}
