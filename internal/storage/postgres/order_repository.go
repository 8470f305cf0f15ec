package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saveitforlater/checkout/internal/domain"
)

// Коды ошибок PostgreSQL, которые маппятся на доменные ошибки.
const (
	pgCodeUniqueViolation  = "23505"
	pgCodeLockNotAvailable = "55P03"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

const orderColumns = `
	id, number, customer_id, status, total,
	ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country,
	bill_line1, bill_line2, bill_city, bill_state, bill_postal_code, bill_country,
	customer_email, customer_phone, notes, stock_committed,
	version, created_at, updated_at`

// Create сохраняет агрегат целиком: заказ, позиции и платёж в одной транзакции.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
	`,
		order.ID, order.Number, order.CustomerID, string(order.Status), order.Total,
		order.ShippingAddress.Line1, order.ShippingAddress.Line2, order.ShippingAddress.City,
		order.ShippingAddress.State, order.ShippingAddress.PostalCode, order.ShippingAddress.Country,
		order.BillingAddress.Line1, order.BillingAddress.Line2, order.BillingAddress.City,
		order.BillingAddress.State, order.BillingAddress.PostalCode, order.BillingAddress.Country,
		order.CustomerEmail, order.CustomerPhone, order.Notes, order.StockCommitted,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, sku, qty, price, subtotal, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			item.ID, order.ID, item.ProductID, item.ProductName, item.SKU,
			item.Qty, item.Price, item.Subtotal, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = r.insertPayment(ctx, tx, order); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (r *orderRepository) insertPayment(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	p := order.Payment
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, method, status, amount, transaction_ref,
			card_brand, card_last_four, gateway, paid_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		p.ID, order.ID, string(p.Method), string(p.Status), p.Amount, p.TransactionRef,
		p.CardBrand, p.CardLastFour, p.Gateway, nullTime(p.PaidAt), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Get возвращает агрегат: заказ, его позиции и платёж.
func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	if err := r.hydrate(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListByCustomer возвращает страницу заказов клиента, новые первыми.
func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
}

// ListAll возвращает страницу всех заказов, новые первыми.
func (r *orderRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		if err := r.hydrate(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// Save обновляет заказ и платёж с optimistic locking по версии агрегата.
// Позиции заказа неизменяемы и не перезаписываются.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.saveTx(ctx, tx, order); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}
	return nil
}

func (r *orderRepository) saveTx(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    customer_email = $2,
		    customer_phone = $3,
		    notes = $4,
		    stock_committed = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $7
		  AND version = $8
	`,
		string(order.Status), order.CustomerEmail, order.CustomerPhone, order.Notes,
		order.StockCommitted, order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := orderExistsTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	p := order.Payment
	if _, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    transaction_ref = $2,
		    card_brand = $3,
		    card_last_four = $4,
		    gateway = $5,
		    paid_at = $6,
		    updated_at = $7
		WHERE order_id = $8
	`,
		string(p.Status), p.TransactionRef, p.CardBrand, p.CardLastFour,
		p.Gateway, nullTime(p.PaidAt), p.UpdatedAt, order.ID,
	); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	return nil
}

// ConfirmPaid атомарно выполняет подтверждающий переход: условное списание
// стока по каждой позиции, сохранение агрегата с version CAS и очистка
// корзины владельца — в одной транзакции. Конкурентные списания сериализует
// row-lock; долгие ожидания обрываются lock_timeout и маппятся в
// ErrStockContention, чтобы вызывающий мог повторить.
func (r *orderRepository) ConfirmPaid(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SET LOCAL lock_timeout = '2s'`); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	for _, item := range order.Items {
		if err = decrementStockTx(ctx, tx, item); err != nil {
			return err
		}
	}

	if err = r.saveTx(ctx, tx, order); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM carts WHERE owner_id = $1`, order.CustomerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	if err = tx.Commit(); err != nil {
		if isLockTimeout(err) {
			return domain.ErrStockContention
		}
		return fmt.Errorf("commit confirm paid: %w", err)
	}
	return nil
}

// decrementStockTx условно списывает сток одной позиции. Условие
// stock_quantity >= qty повторно сверяет остаток под row-lock, поэтому
// продать больше, чем есть, невозможно.
func decrementStockTx(ctx context.Context, tx *sql.Tx, item domain.OrderItem) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2
		  AND stock_quantity >= $1
	`, item.Qty, item.ProductID)
	if err != nil {
		if isLockTimeout(err) {
			return domain.ErrStockContention
		}
		return fmt.Errorf("decrement stock: %w", err)
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
		err := tx.QueryRowContext(ctx,
			`SELECT name, stock_quantity FROM products WHERE id = $1`, item.ProductID,
		).Scan(&name, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("check product stock: %w", err)
		}
		return &domain.InsufficientStockError{
			ProductName: name,
			Requested:   item.Qty,
			Available:   available,
		}
	}
	return nil
}

// hydrate догружает позиции и платёж заказа.
func (r *orderRepository) hydrate(ctx context.Context, order *domain.Order) error {
	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Items = items

	payment, err := r.loadPayment(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Payment = payment
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, sku, qty, price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.ProductName, &item.SKU,
			&item.Qty, &item.Price, &item.Subtotal, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func (r *orderRepository) loadPayment(ctx context.Context, orderID string) (domain.Payment, error) {
	var (
		payment        domain.Payment
		method, status string
		paidAt         sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, method, status, amount, transaction_ref, card_brand, card_last_four,
		       gateway, paid_at, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`, orderID).Scan(
		&payment.ID, &method, &status, &payment.Amount, &payment.TransactionRef,
		&payment.CardBrand, &payment.CardLastFour, &payment.Gateway, &paidAt,
		&payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("load payment: %w", err)
	}
	payment.Method = domain.PaymentMethod(method)
	payment.Status = domain.PaymentStatus(status)
	if paidAt.Valid {
		payment.PaidAt = paidAt.Time
	}
	return payment, nil
}

// scanTarget покрывает и *sql.Row, и *sql.Rows.
type scanTarget interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanTarget) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	err := row.Scan(
		&order.ID, &order.Number, &order.CustomerID, &status, &order.Total,
		&order.ShippingAddress.Line1, &order.ShippingAddress.Line2, &order.ShippingAddress.City,
		&order.ShippingAddress.State, &order.ShippingAddress.PostalCode, &order.ShippingAddress.Country,
		&order.BillingAddress.Line1, &order.BillingAddress.Line2, &order.BillingAddress.City,
		&order.BillingAddress.State, &order.BillingAddress.PostalCode, &order.BillingAddress.Country,
		&order.CustomerEmail, &order.CustomerPhone, &order.Notes, &order.StockCommitted,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCodeUniqueViolation
	}
	return false
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCodeLockNotAvailable
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
