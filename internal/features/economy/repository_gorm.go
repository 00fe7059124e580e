package economy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"serotonyl.ru/stream-rewards/internal/common"
)

type balanceRow struct {
	UserID      int64 `gorm:"primaryKey;autoIncrement:false"`
	Balance     int64 `gorm:"not null;default:0"`
	TotalEarned int64 `gorm:"not null;default:0"`
	TotalSpent  int64 `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (balanceRow) TableName() string { return "balances" }

type transactionRow struct {
	ID              int64  `gorm:"primaryKey"`
	FromUserID      *int64 `gorm:"index"`
	ToUserID        *int64 `gorm:"index"`
	Amount          int64  `gorm:"not null"`
	TransactionType string `gorm:"size:50;not null"`
	Description     string
	CreatedAt       time.Time `gorm:"index"`
}

func (transactionRow) TableName() string { return "transactions" }

// AutoMigrate создаёт таблицы кошельков в gorm-базе.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&balanceRow{}, &transactionRow{})
}

// GormRepository: реализация Store поверх gorm (SQLite).
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) AddBalance(ctx context.Context, userID, amount int64, txType, description string) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		row := balanceRow{UserID: userID, Balance: amount, TotalEarned: amount, CreatedAt: now, UpdatedAt: now}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance":      gorm.Expr("balance + ?", amount),
				"total_earned": gorm.Expr("total_earned + ?", amount),
				"updated_at":   now,
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("ошибка начисления: %w", err)
		}

		var current balanceRow
		if err := tx.First(&current, "user_id = ?", userID).Error; err != nil {
			return fmt.Errorf("ошибка получения баланса: %w", err)
		}
		balance = current.Balance

		to := userID
		return createTransaction(tx, transactionRow{
			ToUserID:        &to,
			Amount:          amount,
			TransactionType: txType,
			Description:     description,
		})
	})
	return balance, err
}

func (r *GormRepository) DeductBalance(ctx context.Context, userID, amount int64, txType, description string) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current balanceRow
		err := tx.First(&current, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("кошелёк user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		if err != nil {
			return fmt.Errorf("ошибка получения баланса: %w", err)
		}
		if current.Balance < amount {
			balance = current.Balance
			return fmt.Errorf("%w: нужно %d, есть %d", common.ErrInsufficientBalance, amount, current.Balance)
		}

		err = tx.Model(&balanceRow{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"balance":     gorm.Expr("balance - ?", amount),
			"total_spent": gorm.Expr("total_spent + ?", amount),
			"updated_at":  time.Now().UTC(),
		}).Error
		if err != nil {
			return fmt.Errorf("ошибка списания: %w", err)
		}
		balance = current.Balance - amount

		from := userID
		return createTransaction(tx, transactionRow{
			FromUserID:      &from,
			Amount:          amount,
			TransactionType: txType,
			Description:     description,
		})
	})
	return balance, err
}

func (r *GormRepository) GetBalance(ctx context.Context, userID int64) (Balance, error) {
	var row balanceRow
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Balance{UserID: userID}, nil
	}
	if err != nil {
		return Balance{}, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return Balance{
		UserID:      row.UserID,
		Balance:     row.Balance,
		TotalEarned: row.TotalEarned,
		TotalSpent:  row.TotalSpent,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (r *GormRepository) GetTransactions(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error) {
	var rows []transactionRow
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}

	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, Transaction{
			ID:              row.ID,
			FromUserID:      row.FromUserID,
			ToUserID:        row.ToUserID,
			Amount:          row.Amount,
			TransactionType: row.TransactionType,
			Description:     row.Description,
			CreatedAt:       row.CreatedAt,
		})
	}
	return out, nil
}

func createTransaction(tx *gorm.DB, row transactionRow) error {
	row.CreatedAt = time.Now().UTC()
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return nil
}
