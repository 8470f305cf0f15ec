package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine — строка корзины: товар, количество и цена на момент добавления.
// PriceAtAdd фиксирует цену при добавлении; последующие изменения каталога
// на неё не влияют.
type CartLine struct {
	ProductID  string          `json:"product_id"`
	Qty        int32           `json:"qty"`
	PriceAtAdd decimal.Decimal `json:"price_at_add"`
}

// Cart — корзина покупателя до конвертации в заказ.
// Управляется внешним сервисом корзины; ядро её читает и очищает.
type Cart struct {
	OwnerID   string     `json:"owner_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
