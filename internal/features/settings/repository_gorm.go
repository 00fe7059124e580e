package settings

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type settingRow struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (settingRow) TableName() string { return "reward_settings" }

// AutoMigrate создаёт таблицу настроек в gorm-базе.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&settingRow{})
}

// GormRepository: реализация Store поверх gorm (SQLite).
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository создаёт gorm-репозиторий настроек.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) All(ctx context.Context) (map[string]string, error) {
	var rows []settingRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

func (r *GormRepository) Upsert(ctx context.Context, values map[string]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := settingRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("ошибка записи настройки %s: %w", key, err)
			}
		}
		return nil
	})
}

func (r *GormRepository) InsertMissing(ctx context.Context, values map[string]string) (int, error) {
	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := settingRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return fmt.Errorf("ошибка записи настройки %s: %w", key, res.Error)
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
