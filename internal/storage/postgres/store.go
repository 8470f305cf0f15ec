// Package postgres — PostgreSQL-реализация хранилищ через database/sql
// поверх драйвера pgx. Заказ сохраняется как агрегат: orders, order_items
// и payments пишутся в одной транзакции.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Таймаут одиночных операций репозиториев и пинга.
const opTimeout = 5 * time.Second

// Store оборачивает пул подключений к PostgreSQL; все репозитории
// пакета строятся поверх него.
type Store struct {
	db *sql.DB
}

// Open открывает пул подключений и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := pingWithTimeout(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func pingWithTimeout(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return db.PingContext(pingCtx)
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность базы; используется readiness-пробой.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}
	return pingWithTimeout(ctx, s.db)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает пул подключений.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
