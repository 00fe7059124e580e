package members

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"serotonyl.ru/stream-rewards/internal/common"
)

type memberRow struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"uniqueIndex;not null"`
	Username  string `gorm:"size:255"`
	FirstName string `gorm:"size:255"`
	LastName  string `gorm:"size:255"`
	IsBanned  bool   `gorm:"not null;default:false"`
	JoinedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (memberRow) TableName() string { return "members" }

// AutoMigrate создаёт таблицу участников в gorm-базе.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&memberRow{})
}

// GormRepository: реализация Store поверх gorm (SQLite).
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Upsert(ctx context.Context, m Member) error {
	return r.upsert(ctx, m, false)
}

// Register, в отличие от Upsert, перезаписывает joined_at у существующего аккаунта.
func (r *GormRepository) Register(ctx context.Context, m Member) error {
	return r.upsert(ctx, m, true)
}

func (r *GormRepository) upsert(ctx context.Context, m Member, overwriteJoinedAt bool) error {
	row := memberRow{
		UserID:    m.UserID,
		Username:  m.Username,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		IsBanned:  m.IsBanned,
		JoinedAt:  m.JoinedAt.UTC(),
	}
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if m.Username != "" {
		updates["username"] = m.Username
	}
	if m.FirstName != "" {
		updates["first_name"] = m.FirstName
	}
	if m.LastName != "" {
		updates["last_name"] = m.LastName
	}
	if overwriteJoinedAt {
		updates["joined_at"] = row.JoinedAt
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

func (r *GormRepository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	var row memberRow
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения участника (user_id=%d): %w", userID, err)
	}
	return &Member{
		ID:        row.ID,
		UserID:    row.UserID,
		Username:  row.Username,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		IsBanned:  row.IsBanned,
		JoinedAt:  row.JoinedAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
