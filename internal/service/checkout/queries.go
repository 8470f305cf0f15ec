package checkout

import (
	"context"

	"github.com/saveitforlater/checkout/internal/domain"
)

// Пагинация списков: дефолт и потолок размера страницы.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GetOrder возвращает заказ владельцу или администратору.
// Чужой заказ неотличим от несуществующего.
func (s *Service) GetOrder(ctx context.Context, principal domain.Principal, orderID string) (domain.Order, error) {
	return s.loadOwned(ctx, principal, orderID)
}

// ListOrders возвращает заказы principal постранично, новые первыми.
func (s *Service) ListOrders(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Order, error) {
	limit, offset = clampPage(limit, offset)
	return s.orders.ListByCustomer(ctx, principal.ID, limit, offset)
}

// ListAllOrders — административная выборка всех заказов.
func (s *Service) ListAllOrders(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Order, error) {
	if !principal.IsAdmin() {
		return nil, domain.ErrNotAuthorized
	}
	limit, offset = clampPage(limit, offset)
	return s.orders.ListAll(ctx, limit, offset)
}
