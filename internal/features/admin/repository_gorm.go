package admin

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type attemptRow struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Login       string    `gorm:"size:64;not null;index:idx_admin_attempts_login_time,priority:1"`
	RemoteAddr  string    `gorm:"size:128"`
	AttemptTime time.Time `gorm:"not null;index:idx_admin_attempts_login_time,priority:2"`
	Success     bool      `gorm:"not null"`
}

func (attemptRow) TableName() string { return "admin_login_attempts" }

// AutoMigrate создаёт таблицу попыток входа.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&attemptRow{})
}

// GormRepository: AttemptStore на gorm (SQLite).
type GormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormRepository создаёт репозиторий.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db, now: time.Now}
}

func (r *GormRepository) LogAttempt(ctx context.Context, login, remoteAddr string, success bool) error {
	row := attemptRow{Login: login, RemoteAddr: remoteAddr, AttemptTime: r.now().UTC(), Success: success}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

func (r *GormRepository) RecentFailures(ctx context.Context, login string, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&attemptRow{}).
		Where("login = ? AND success = ? AND attempt_time >= ?", login, false, since.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return int(count), nil
}
