// Package settings: repository.go хранит настройки наград в таблице reward_settings
// (ключ → строковое значение). Разбор и проверка значений: в models.go.
package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store: хранилище строк настроек.
type Store interface {
	// All возвращает все сохранённые пары ключ → значение.
	All(ctx context.Context) (map[string]string, error)
	// Upsert записывает значения, перезаписывая существующие.
	Upsert(ctx context.Context, values map[string]string) error
	// InsertMissing записывает только отсутствующие ключи и возвращает их число.
	InsertMissing(ctx context.Context, values map[string]string) (int, error)
}

// Repository: реализация Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий настроек.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// All читает все настройки.
func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM reward_settings`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("ошибка сканирования настройки: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}

// Upsert записывает набор значений одной транзакцией.
func (r *Repository) Upsert(ctx context.Context, values map[string]string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	for key, value := range values {
		_, err := tx.Exec(ctx, `
			INSERT INTO reward_settings (key, value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, key, value)
		if err != nil {
			return fmt.Errorf("ошибка записи настройки %s: %w", key, err)
		}
	}
	return tx.Commit(ctx)
}

// InsertMissing дописывает ключи, которых ещё нет в таблице.
func (r *Repository) InsertMissing(ctx context.Context, values map[string]string) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for key, value := range values {
		tag, err := tx.Exec(ctx, `
			INSERT INTO reward_settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO NOTHING
		`, key, value)
		if err != nil {
			return 0, fmt.Errorf("ошибка записи настройки %s: %w", key, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}
