package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/saveitforlater/checkout/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, sku, name, price, sale_price, stock_quantity, version, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.SKU, &product.Name, &product.Price, &product.SalePrice,
		&product.StockQuantity, &product.Version, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// Create добавляет товар в каталог.
func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, price, sale_price, stock_quantity, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		product.ID, product.SKU, product.Name, product.Price, product.SalePrice,
		product.StockQuantity, product.Version, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// AdjustStock изменяет остаток на delta. Условие в WHERE не даёт увести
// остаток ниже нуля; CHECK-constraint страхует на уровне схемы.
func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2
		  AND stock_quantity + $1 >= 0
	`, delta, id)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var (
			name      string
			available int32
		)
		err := r.db.QueryRowContext(ctx,
			`SELECT name, stock_quantity FROM products WHERE id = $1`, id,
		).Scan(&name, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		return &domain.InsufficientStockError{
			ProductName: name,
			Requested:   -delta,
			Available:   available,
		}
	}
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
