package domain_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/saveitforlater/checkout/internal/domain"
)

func validOrder() domain.Order {
	now := time.Now().UTC()
	price := decimal.NewFromFloat(19.99)
	return domain.Order{
		ID:         "order-1",
		Number:     "ORD-20260829-ABCD",
		CustomerID: "customer-1",
		Status:     domain.OrderStatusPending,
		Total:      price.Mul(decimal.NewFromInt(2)),
		Items: []domain.OrderItem{
			{
				ID:        "item-1",
				ProductID: "product-1",
				SKU:       "SKU-1",
				Qty:       2,
				Price:     price,
				Subtotal:  price.Mul(decimal.NewFromInt(2)),
				CreatedAt: now,
			},
		},
		Payment: domain.Payment{
			ID:     "payment-1",
			Method: domain.PaymentMethodCreditCard,
			Status: domain.PaymentStatusPending,
			Amount: price.Mul(decimal.NewFromInt(2)),
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestValidateInvariants_ValidOrder(t *testing.T) {
	order := validOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateInvariants_Violations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.Order)
		want   error
	}{
		{
			name:   "missing customer",
			mutate: func(o *domain.Order) { o.CustomerID = "" },
			want:   domain.ErrCustomerRequired,
		},
		{
			name:   "no items",
			mutate: func(o *domain.Order) { o.Items = nil },
			want:   domain.ErrItemsRequired,
		},
		{
			name:   "subtotal mismatch",
			mutate: func(o *domain.Order) { o.Items[0].Subtotal = decimal.NewFromInt(1) },
			want:   domain.ErrItemSubtotalMismatch,
		},
		{
			name:   "total mismatch",
			mutate: func(o *domain.Order) { o.Total = decimal.NewFromInt(999) },
			want:   domain.ErrTotalMismatch,
		},
		{
			name:   "zero qty",
			mutate: func(o *domain.Order) { o.Items[0].Qty = 0 },
			want:   domain.ErrItemQtyInvalid,
		},
		{
			name: "payment amount mismatch",
			mutate: func(o *domain.Order) {
				o.Payment.Amount = decimal.NewFromInt(1)
			},
			want: domain.ErrPaymentAmountMismatch,
		},
		{
			name: "unknown payment method",
			mutate: func(o *domain.Order) {
				o.Payment.Method = "barter"
			},
			want: domain.ErrPaymentMethodUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := validOrder()
			tc.mutate(&order)

			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestSnapshotItem_PriceAtAddWins(t *testing.T) {
	now := time.Now().UTC()
	product := domain.Product{
		ID:    "product-1",
		SKU:   "SKU-1",
		Name:  "Widget",
		Price: decimal.NewFromInt(50),
	}
	line := domain.CartLine{
		ProductID:  "product-1",
		Qty:        3,
		PriceAtAdd: decimal.NewFromInt(40),
	}

	item := domain.SnapshotItem(line, product, now)

	if !item.Price.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected price-at-add 40, got %s", item.Price)
	}
	if !item.Subtotal.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected subtotal 120, got %s", item.Subtotal)
	}
	if item.ProductName != "Widget" || item.SKU != "SKU-1" {
		t.Fatalf("catalog fields not snapshotted: %+v", item)
	}
}

func TestSnapshotItem_FallsBackToEffectivePrice(t *testing.T) {
	now := time.Now().UTC()
	product := domain.Product{
		ID:        "product-1",
		Name:      "Widget",
		Price:     decimal.NewFromInt(50),
		SalePrice: decimal.NewFromInt(35),
	}
	line := domain.CartLine{ProductID: "product-1", Qty: 1}

	item := domain.SnapshotItem(line, product, now)
	if !item.Price.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected sale price 35, got %s", item.Price)
	}
}

func TestNewOrderNumber_Format(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20260829-[0-9A-F]{4}$`)

	number := domain.NewOrderNumber(now)
	if !pattern.MatchString(number) {
		t.Fatalf("unexpected order number format: %s", number)
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []domain.OrderStatus{
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
		domain.OrderStatusRefunded,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	if domain.OrderStatusPending.IsTerminal() || domain.OrderStatusShipped.IsTerminal() {
		t.Error("non-terminal status reported as terminal")
	}
}

func TestValidationError(t *testing.T) {
	err := domain.NewValidationError(domain.ErrCustomerRequired, domain.ErrItemsRequired)
	if !domain.IsValidation(err) {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, domain.ErrCustomerRequired) {
		t.Fatal("wrapped sentinel must match errors.Is")
	}
	if domain.NewValidationError() != nil {
		t.Fatal("empty error list must produce nil")
	}
}
