// Package postgres: вспомогательные функции для работы с БД.
// queries.go содержит применение миграций и разбор ошибок PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Код SQLSTATE нарушения уникальности
const uniqueViolationCode = "23505"

// Migration: одна версия схемы.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// ApplyMigrations применяет миграции по порядку, пропуская уже применённые.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	if err := RunMigrations(ctx, pool); err != nil {
		return err
	}
	for _, m := range migrations {
		applied, err := ExecMigrationSQL(ctx, pool, m.Version, m.SQL)
		if err != nil {
			return fmt.Errorf("миграция %d (%s): %w", m.Version, m.Name, err)
		}
		if applied {
			log.Infof("Миграция %d применена: %s", m.Version, m.Name)
		}
	}
	return nil
}

// ExecMigrationSQL выполняет одну миграцию в транзакции вместе с записью
// её версии в schema_migrations. Возвращает false, если версия уже была применена.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return false, fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("ошибка фиксации миграции %d: %w", version, err)
	}
	return true, nil
}

// IsUniqueViolation сообщает, что запрос нарушил уникальный индекс.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
