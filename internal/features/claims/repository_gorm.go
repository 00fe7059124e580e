package claims

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
)

// claimRow хранит дату строкой "2006-01-02": у SQLite нет типа DATE,
// а сравнение строк такого вида совпадает с порядком дат.
type claimRow struct {
	ID         int64  `gorm:"primaryKey"`
	UserID     int64  `gorm:"not null;uniqueIndex:ux_reward_claims_day,priority:1"`
	RewardKind string `gorm:"size:32;not null;uniqueIndex:ux_reward_claims_day,priority:2"`
	ClaimDate  string `gorm:"size:10;not null;uniqueIndex:ux_reward_claims_day,priority:3;index"`
	SessionRef string `gorm:"size:128"`
	Amount     int64  `gorm:"not null"`
	CreatedAt  time.Time
}

func (claimRow) TableName() string { return "reward_claims" }

func (r claimRow) claim() Claim {
	day, _ := time.ParseInLocation("2006-01-02", r.ClaimDate, time.UTC)
	return Claim{
		ID:         r.ID,
		UserID:     r.UserID,
		Kind:       common.RewardKind(r.RewardKind),
		Date:       day,
		SessionRef: r.SessionRef,
		Amount:     r.Amount,
		CreatedAt:  r.CreatedAt,
	}
}

// AutoMigrate создаёт таблицу наград в gorm-базе.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&claimRow{})
}

// GormRepository: реализация Store поверх gorm (SQLite).
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository создаёт gorm-репозиторий наград.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Insert(ctx context.Context, c Claim) (Claim, error) {
	row := claimRow{
		UserID:     c.UserID,
		RewardKind: string(c.Kind),
		ClaimDate:  common.FormatDate(c.Date),
		SessionRef: c.SessionRef,
		Amount:     c.Amount,
		CreatedAt:  time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if sqlite.IsUniqueViolation(err) {
		return Claim{}, common.ErrDuplicateClaim
	}
	if err != nil {
		return Claim{}, fmt.Errorf("ошибка записи награды: %w", err)
	}
	return row.claim(), nil
}

func (r *GormRepository) Exists(ctx context.Context, userID int64, kind common.RewardKind, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&claimRow{}).
		Where("user_id = ? AND reward_kind = ? AND claim_date = ?", userID, string(kind), common.FormatDate(day)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ошибка проверки награды: %w", err)
	}
	return count > 0, nil
}

func (r *GormRepository) Delete(ctx context.Context, userID int64, kind common.RewardKind, day time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND reward_kind = ? AND claim_date = ?", userID, string(kind), common.FormatDate(day)).
		Delete(&claimRow{})
	if res.Error != nil {
		return false, fmt.Errorf("ошибка удаления награды: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) List(ctx context.Context, f Filter) ([]Claim, error) {
	q := r.db.WithContext(ctx).Model(&claimRow{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Kind != "" {
		q = q.Where("reward_kind = ?", string(f.Kind))
	}
	if f.From != nil {
		q = q.Where("claim_date >= ?", common.FormatDate(*f.From))
	}
	if f.To != nil {
		q = q.Where("claim_date <= ?", common.FormatDate(*f.To))
	}

	var rows []claimRow
	if err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка чтения наград: %w", err)
	}
	list := make([]Claim, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.claim())
	}
	return list, nil
}

func (r *GormRepository) Summary(ctx context.Context, day time.Time) ([]DaySummary, error) {
	var rows []struct {
		RewardKind string
		Count      int64
		Amount     int64
	}
	err := r.db.WithContext(ctx).Model(&claimRow{}).
		Select("reward_kind, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("claim_date = ?", common.FormatDate(day)).
		Group("reward_kind").
		Order("reward_kind").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта наград: %w", err)
	}
	out := make([]DaySummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, DaySummary{Kind: common.RewardKind(row.RewardKind), Count: row.Count, Amount: row.Amount})
	}
	return out, nil
}
