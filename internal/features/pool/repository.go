// Package pool: repository.go выполняет операции с таблицами reward_pool и pool_ledger.
// Изменение баланса и запись в журнал всегда идут в одной транзакции.
package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Store: хранилище пула.
type Store interface {
	// Init создаёт строку пула, если её нет. Возвращает true, если пул создан сейчас.
	Init(ctx context.Context, initial int64) (bool, error)
	Balance(ctx context.Context) (int64, error)
	// Debit атомарно уменьшает баланс, если его хватает.
	Debit(ctx context.Context, amount int64, meta Meta) (int64, error)
	Credit(ctx context.Context, amount int64, meta Meta) (int64, error)
	// Entries: журнал от новых записей к старым.
	Entries(ctx context.Context, limit, offset int) ([]LedgerEntry, error)
	// Snapshot: баланс и весь журнал (от старых к новым) на один момент времени.
	Snapshot(ctx context.Context) (int64, []LedgerEntry, error)
}

// Repository: реализация Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий пула.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const ledgerColumns = `id, delta, reason, actor_ref, user_id, COALESCE(reward_kind, ''),
	COALESCE(session_ref, ''), rollback, resulting_balance, created_at`

// Init создаёт пул с начальным балансом и записью genesis в журнале.
func (r *Repository) Init(ctx context.Context, initial int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO reward_pool (id, balance) VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING
	`, initial)
	if err != nil {
		return false, fmt.Errorf("ошибка создания пула: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if initial > 0 {
		meta := Meta{Reason: ReasonGenesis, ActorRef: "system"}
		if err := insertEntry(ctx, tx, initial, initial, meta); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Balance возвращает текущий баланс пула.
func (r *Repository) Balance(ctx context.Context) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM reward_pool WHERE id = 1`).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrPoolNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса пула: %w", err)
	}
	return balance, nil
}

// Debit списывает монеты из пула.
// Условный UPDATE ... WHERE balance >= $1 сам по себе сериализует конкурентные
// списания: второй запрос ждёт блокировку строки и перепроверяет условие.
func (r *Repository) Debit(ctx context.Context, amount int64, meta Meta) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE reward_pool
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = 1 AND balance >= $1
		RETURNING balance
	`, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		var current int64
		if err := tx.QueryRow(ctx, `SELECT balance FROM reward_pool WHERE id = 1`).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, common.ErrPoolNotInitialized
			}
			return 0, fmt.Errorf("ошибка получения баланса пула: %w", err)
		}
		return current, fmt.Errorf("%w: нужно %d, есть %d", common.ErrInsufficientFunds, amount, current)
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка списания из пула: %w", err)
	}

	if err := insertEntry(ctx, tx, -amount, balance, meta); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации списания: %w", err)
	}
	return balance, nil
}

// Credit пополняет пул.
func (r *Repository) Credit(ctx context.Context, amount int64, meta Meta) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE reward_pool
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = 1
		RETURNING balance
	`, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrPoolNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка пополнения пула: %w", err)
	}

	if err := insertEntry(ctx, tx, amount, balance, meta); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации пополнения: %w", err)
	}
	return balance, nil
}

// Entries возвращает страницу журнала, новые записи первыми.
func (r *Repository) Entries(ctx context.Context, limit, offset int) ([]LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM pool_ledger
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала пула: %w", err)
	}
	return collectEntries(rows)
}

// Snapshot читает баланс и журнал в одной REPEATABLE READ транзакции,
// чтобы параллельные выплаты не исказили сверку.
func (r *Repository) Snapshot(ctx context.Context) (int64, []LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return 0, nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM reward_pool WHERE id = 1`).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, common.ErrPoolNotInitialized
	}
	if err != nil {
		return 0, nil, fmt.Errorf("ошибка получения баланса пула: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT `+ledgerColumns+` FROM pool_ledger ORDER BY id ASC`)
	if err != nil {
		return 0, nil, fmt.Errorf("ошибка чтения журнала пула: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return 0, nil, err
	}
	return balance, entries, tx.Commit(ctx)
}

func insertEntry(ctx context.Context, tx pgx.Tx, delta, resulting int64, meta Meta) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO pool_ledger
			(delta, reason, actor_ref, user_id, reward_kind, session_ref, rollback, resulting_balance)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`, delta, meta.Reason, meta.ActorRef, meta.UserID, meta.RewardKind, meta.SessionRef, meta.Rollback, resulting)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал пула: %w", err)
	}
	return nil
}

func collectEntries(rows pgx.Rows) ([]LedgerEntry, error) {
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.Delta, &e.Reason, &e.ActorRef, &e.UserID, &e.RewardKind,
			&e.SessionRef, &e.Rollback, &e.ResultingBalance, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
