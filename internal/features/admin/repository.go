// Package admin: repository.go работает с таблицей admin_login_attempts.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptStore хранит попытки входа.
type AttemptStore interface {
	LogAttempt(ctx context.Context, login, remoteAddr string, success bool) error
	// RecentFailures возвращает число неудачных попыток логина начиная с since.
	RecentFailures(ctx context.Context, login string, since time.Time) (int, error)
}

// Repository: AttemptStore на PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, login, remoteAddr string, success bool) error {
	query := `INSERT INTO admin_login_attempts (login, remote_addr, success) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, query, login, remoteAddr, success); err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// RecentFailures возвращает количество неудачных попыток за период.
func (r *Repository) RecentFailures(ctx context.Context, login string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE login = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, login, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return count, nil
}
