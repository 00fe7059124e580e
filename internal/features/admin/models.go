// Package admin: панель управления движком наград: настройки, пул,
// журнал наград, ручная выдача и сброс. Доступ по логину и паролю (Argon2id).
// models.go описывает попытки входа и сводку по пулу.
package admin

import (
	"time"

	"serotonyl.ru/stream-rewards/internal/features/settings"
)

// Защита от перебора: после MaxFailedAttempts неудач логин блокируется на LockoutWindow
const (
	MaxFailedAttempts = 3
	LockoutWindow     = time.Hour
)

// LoginAttempt: попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	Login       string    `db:"login"`
	RemoteAddr  string    `db:"remote_addr"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// PoolStatus: состояние пула для админки.
type PoolStatus struct {
	Balance        int64                 `json:"balance"`
	Threshold      int64                 `json:"threshold"`
	FailSafeMode   settings.FailSafeMode `json:"fail_safe_mode"`
	ReductionPct   int                   `json:"reduction_pct"`
	BelowThreshold bool                  `json:"below_threshold"`
}
