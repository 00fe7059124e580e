// Package economy: repository.go выполняет все операции с таблицами balances и transactions.
// Изменение баланса и запись транзакции всегда идут в одной транзакции БД.
package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Store: хранилище кошельков.
type Store interface {
	// AddBalance зачисляет монеты, создавая кошелёк при необходимости.
	AddBalance(ctx context.Context, userID, amount int64, txType, description string) (int64, error)
	// DeductBalance списывает монеты, не уводя баланс в минус.
	DeductBalance(ctx context.Context, userID, amount int64, txType, description string) (int64, error)
	GetBalance(ctx context.Context, userID int64) (Balance, error)
	GetTransactions(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error)
}

// Repository предоставляет методы для работы с балансами и транзакциями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий экономики.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// AddBalance добавляет монеты на счёт пользователя.
func (r *Repository) AddBalance(ctx context.Context, userID, amount int64, txType, description string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		INSERT INTO balances (user_id, balance, total_earned, total_spent)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = balances.balance + EXCLUDED.balance,
		    total_earned = balances.total_earned + EXCLUDED.balance,
		    updated_at = NOW()
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ошибка начисления: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (to_user_id, amount, transaction_type, description)
		VALUES ($1, $2, $3, $4)
	`, userID, amount, txType, description)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации начисления: %w", err)
	}
	return balance, nil
}

// DeductBalance списывает монеты со счёта пользователя.
func (r *Repository) DeductBalance(ctx context.Context, userID, amount int64, txType, description string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку и проверяем баланс
	var current int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM balances WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("кошелёк user_id=%d: %w", userID, common.ErrUserNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	if current < amount {
		return current, fmt.Errorf("%w: нужно %d, есть %d", common.ErrInsufficientBalance, amount, current)
	}

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE balances
		SET balance = balance - $2, total_spent = total_spent + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ошибка списания: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (from_user_id, amount, transaction_type, description)
		VALUES ($1, $2, $3, $4)
	`, userID, amount, txType, description)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации списания: %w", err)
	}
	return balance, nil
}

// GetBalance возвращает кошелёк пользователя. Пустой кошелёк: нулевой баланс.
func (r *Repository) GetBalance(ctx context.Context, userID int64) (Balance, error) {
	b := Balance{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT balance, total_earned, total_spent, created_at, updated_at
		FROM balances
		WHERE user_id = $1
	`, userID).Scan(&b.Balance, &b.TotalEarned, &b.TotalSpent, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, nil
	}
	if err != nil {
		return Balance{}, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return b, nil
}

// GetTransactions возвращает транзакции пользователя, новые первыми.
func (r *Repository) GetTransactions(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, from_user_id, to_user_id, amount, transaction_type, COALESCE(description, ''), created_at
		FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var t Transaction
		err := rows.Scan(
			&t.ID, &t.FromUserID, &t.ToUserID,
			&t.Amount, &t.TransactionType, &t.Description, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
