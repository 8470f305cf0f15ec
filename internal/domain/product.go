package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — каталожная запись товара. Каталог для ядра read-only,
// за исключением счётчика стока, который меняет только Stock Ledger.
type Product struct {
	ID   string
	SKU  string
	Name string
	// Price — базовая цена; SalePrice, если положительна, имеет приоритет.
	Price     decimal.Decimal
	SalePrice decimal.Decimal
	// StockQuantity — доступный остаток. Единственное разделяемое
	// изменяемое состояние между заказами.
	StockQuantity int32
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectivePrice возвращает действующую цену товара с учётом скидки.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.Price
}
