// Package claims: repository.go работает с таблицей reward_claims.
package claims

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/postgres"
)

// Store: хранилище наград.
type Store interface {
	// Insert записывает награду. Повтор за тот же день даёт common.ErrDuplicateClaim.
	Insert(ctx context.Context, c Claim) (Claim, error)
	Exists(ctx context.Context, userID int64, kind common.RewardKind, day time.Time) (bool, error)
	// Delete удаляет запись за день. Возвращает false, если удалять было нечего.
	Delete(ctx context.Context, userID int64, kind common.RewardKind, day time.Time) (bool, error)
	List(ctx context.Context, f Filter) ([]Claim, error)
	Summary(ctx context.Context, day time.Time) ([]DaySummary, error)
}

// Repository: реализация Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий наград.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert записывает награду.
func (r *Repository) Insert(ctx context.Context, c Claim) (Claim, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO reward_claims (user_id, reward_kind, claim_date, session_ref, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, c.UserID, string(c.Kind), c.Date, c.SessionRef, c.Amount).Scan(&c.ID, &c.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return Claim{}, common.ErrDuplicateClaim
	}
	if err != nil {
		return Claim{}, fmt.Errorf("ошибка записи награды: %w", err)
	}
	return c, nil
}

// Exists проверяет, есть ли награда за день.
func (r *Repository) Exists(ctx context.Context, userID int64, kind common.RewardKind, day time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM reward_claims
			WHERE user_id = $1 AND reward_kind = $2 AND claim_date = $3
		)
	`, userID, string(kind), day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки награды: %w", err)
	}
	return exists, nil
}

// Delete удаляет награду за день.
func (r *Repository) Delete(ctx context.Context, userID int64, kind common.RewardKind, day time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM reward_claims
		WHERE user_id = $1 AND reward_kind = $2 AND claim_date = $3
	`, userID, string(kind), day)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления награды: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List возвращает журнал наград, новые первыми.
func (r *Repository) List(ctx context.Context, f Filter) ([]Claim, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Kind != "" {
		add("reward_kind = $%d", string(f.Kind))
	}
	if f.From != nil {
		add("claim_date >= $%d", common.RewardDate(*f.From))
	}
	if f.To != nil {
		add("claim_date <= $%d", common.RewardDate(*f.To))
	}

	query := `SELECT id, user_id, reward_kind, claim_date, COALESCE(session_ref, ''), amount, created_at
		FROM reward_claims`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения наград: %w", err)
	}
	defer rows.Close()

	var list []Claim
	for rows.Next() {
		var (
			c    Claim
			kind string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &kind, &c.Date, &c.SessionRef, &c.Amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования награды: %w", err)
		}
		c.Kind = common.RewardKind(kind)
		c.Date = common.RewardDate(c.Date)
		list = append(list, c)
	}
	return list, rows.Err()
}

// Summary считает выданные за день награды по типам.
func (r *Repository) Summary(ctx context.Context, day time.Time) ([]DaySummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT reward_kind, COUNT(*), COALESCE(SUM(amount), 0)
		FROM reward_claims
		WHERE claim_date = $1
		GROUP BY reward_kind
		ORDER BY reward_kind
	`, day)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта наград: %w", err)
	}
	defer rows.Close()

	var out []DaySummary
	for rows.Next() {
		var (
			s    DaySummary
			kind string
		)
		if err := rows.Scan(&kind, &s.Count, &s.Amount); err != nil {
			return nil, fmt.Errorf("ошибка сканирования итогов: %w", err)
		}
		s.Kind = common.RewardKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}
