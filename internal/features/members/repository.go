// Package members: repository.go отвечает за операции с таблицей members.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Store: хранилище аккаунтов.
type Store interface {
	// Upsert создаёт аккаунт или обновляет имя/username. joined_at не меняется.
	Upsert(ctx context.Context, m Member) error
	// Register создаёт аккаунт или перезаписывает его joined_at (импорт, правка админом).
	Register(ctx context.Context, m Member) error
	// GetByUserID возвращает common.ErrUserNotFound, если аккаунта нет.
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert добавляет участника. На конфликте по user_id обновляет только имя/username.
func (r *Repository) Upsert(ctx context.Context, m Member) error {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name, is_banned, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET username = COALESCE(NULLIF(EXCLUDED.username, ''), members.username),
		    first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), members.first_name),
		    last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), members.last_name),
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		m.UserID, m.Username, m.FirstName, m.LastName, m.IsBanned, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

// Register добавляет участника с известной датой создания.
// На конфликте по user_id joined_at перезаписывается.
func (r *Repository) Register(ctx context.Context, m Member) error {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name, is_banned, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET username = COALESCE(NULLIF(EXCLUDED.username, ''), members.username),
		    first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), members.first_name),
		    last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), members.last_name),
		    joined_at = EXCLUDED.joined_at,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		m.UserID, m.Username, m.FirstName, m.LastName, m.IsBanned, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка регистрации участника: %w", err)
	}
	return nil
}

// GetByUserID читает участника по Telegram ID.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	query := `
		SELECT id, user_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
		       is_banned, joined_at, created_at, updated_at
		FROM members
		WHERE user_id = $1
	`
	var m Member
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName,
		&m.IsBanned, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения участника (user_id=%d): %w", userID, err)
	}
	return &m, nil
}
