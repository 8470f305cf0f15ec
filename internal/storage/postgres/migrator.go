package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

// Advisory lock сериализует прогон миграций между экземплярами сервиса.
const migrationLockKey = int64(20260829)

const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migration — пара up/down SQL под одной версией.
type migration struct {
	version int64
	name    string
	up      string
	down    string
}

func (m migration) label() string {
	return fmt.Sprintf("%d_%s", m.version, m.name)
}

// MigrateUp применяет up-миграции по порядку версий. steps=0 — все доступные.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn, all []migration) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		done := 0
		for _, m := range all {
			if applied[m.version] {
				continue
			}
			if steps > 0 && done >= steps {
				break
			}
			err := inTx(ctx, conn, m.label(), m.up,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name)
			if err != nil {
				return err
			}
			done++
		}
		return nil
	})
}

// MigrateDown откатывает последние миграции. steps<=0 трактуется как один шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrationLock(ctx, func(conn *sql.Conn, all []migration) error {
		byVersion := make(map[int64]migration, len(all))
		for _, m := range all {
			byVersion[m.version] = m
		}

		rows, err := conn.QueryContext(ctx,
			`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, steps)
		if err != nil {
			return fmt.Errorf("query applied migrations: %w", err)
		}
		defer rows.Close()

		var rollback []int64
		for rows.Next() {
			var version int64
			if err := rows.Scan(&version); err != nil {
				return fmt.Errorf("scan migration version: %w", err)
			}
			rollback = append(rollback, version)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate applied migrations: %w", err)
		}

		for _, version := range rollback {
			m, ok := byVersion[version]
			if !ok {
				return fmt.Errorf("cannot rollback unknown migration version %d", version)
			}
			err := inTx(ctx, conn, m.label(), m.down,
				`DELETE FROM schema_migrations WHERE version = $1`, m.version)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает текущую версию схемы и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationsTable); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var (
		version int64
		count   int
	)
	err := s.db.QueryRowContext(queryCtx,
		`SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`,
	).Scan(&version, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}
	return version, count, nil
}

// withMigrationLock выполняет fn на выделенном соединении под advisory lock,
// с гарантированной таблицей schema_migrations и загруженным набором миграций.
func (s *Store) withMigrationLock(ctx context.Context, fn func(*sql.Conn, []migration) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	all, err := loadMigrations()
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn, all)
}

// inTx выполняет SQL миграции и запись в schema_migrations одной транзакцией.
func inTx(ctx context.Context, conn *sql.Conn, label, body, record string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for migration %s: %w", label, err)
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", label, err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", label, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", label, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// loadMigrations читает embedded каталог миграций. Формат имени файла:
// NNNN_name.up.sql / NNNN_name.down.sql; обе половины обязательны.
func loadMigrations() ([]migration, error) {
	files, err := fs.Glob(migrationsFS, "sql/migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migration files embedded")
	}

	parsed := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)

		stem, isUp := strings.CutSuffix(base, ".up.sql")
		if !isUp {
			if stem, _ = strings.CutSuffix(base, ".down.sql"); stem == base {
				return nil, fmt.Errorf("unexpected migration file: %s", base)
			}
		}
		versionStr, name, ok := strings.Cut(stem, "_")
		if !ok {
			return nil, fmt.Errorf("migration file without version prefix: %s", base)
		}
		version, err := strconv.ParseInt(versionStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", base, err)
		}

		raw, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		m, exists := parsed[version]
		if !exists {
			m = &migration{version: version, name: name}
			parsed[version] = m
		} else if m.name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.name, name)
		}
		if isUp {
			if m.up != "" {
				return nil, fmt.Errorf("duplicate up migration for version %d", version)
			}
			m.up = body
		} else {
			if m.down != "" {
				return nil, fmt.Errorf("duplicate down migration for version %d", version)
			}
			m.down = body
		}
	}

	out := make([]migration, 0, len(parsed))
	for _, m := range parsed {
		if m.up == "" || m.down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
