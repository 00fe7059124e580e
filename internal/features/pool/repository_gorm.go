package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"serotonyl.ru/stream-rewards/internal/common"
)

type poolRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	Balance   int64 `gorm:"not null;check:balance >= 0"`
	UpdatedAt time.Time
}

func (poolRow) TableName() string { return "reward_pool" }

type ledgerRow struct {
	ID               int64  `gorm:"primaryKey"`
	Delta            int64  `gorm:"not null"`
	Reason           string `gorm:"size:32;not null"`
	ActorRef         string `gorm:"size:128;not null"`
	UserID           *int64 `gorm:"index"`
	RewardKind       string `gorm:"size:32"`
	SessionRef       string `gorm:"size:128"`
	Rollback         bool   `gorm:"not null;default:false"`
	ResultingBalance int64  `gorm:"not null"`
	CreatedAt        time.Time
}

func (ledgerRow) TableName() string { return "pool_ledger" }

func (r ledgerRow) entry() LedgerEntry {
	return LedgerEntry{
		ID:               r.ID,
		Delta:            r.Delta,
		Reason:           r.Reason,
		ActorRef:         r.ActorRef,
		UserID:           r.UserID,
		RewardKind:       r.RewardKind,
		SessionRef:       r.SessionRef,
		Rollback:         r.Rollback,
		ResultingBalance: r.ResultingBalance,
		CreatedAt:        r.CreatedAt,
	}
}

// AutoMigrate создаёт таблицы пула в gorm-базе.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&poolRow{}, &ledgerRow{})
}

// GormRepository: реализация Store поверх gorm (SQLite).
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository создаёт gorm-репозиторий пула.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Init(ctx context.Context, initial int64) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&poolRow{ID: 1, Balance: initial, UpdatedAt: time.Now().UTC()})
		if res.Error != nil {
			return fmt.Errorf("ошибка создания пула: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		if initial > 0 {
			return appendEntry(tx, initial, initial, Meta{Reason: ReasonGenesis, ActorRef: "system"})
		}
		return nil
	})
	return created, err
}

func (r *GormRepository) Balance(ctx context.Context) (int64, error) {
	return currentBalance(r.db.WithContext(ctx))
}

func (r *GormRepository) Debit(ctx context.Context, amount int64, meta Meta) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&poolRow{}).
			Where("id = ? AND balance >= ?", 1, amount).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", amount),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("ошибка списания из пула: %w", res.Error)
		}

		current, err := currentBalance(tx)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			balance = current
			return fmt.Errorf("%w: нужно %d, есть %d", common.ErrInsufficientFunds, amount, current)
		}
		balance = current
		return appendEntry(tx, -amount, current, meta)
	})
	return balance, err
}

func (r *GormRepository) Credit(ctx context.Context, amount int64, meta Meta) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&poolRow{}).
			Where("id = ?", 1).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("ошибка пополнения пула: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return common.ErrPoolNotInitialized
		}

		current, err := currentBalance(tx)
		if err != nil {
			return err
		}
		balance = current
		return appendEntry(tx, amount, current, meta)
	})
	return balance, err
}

func (r *GormRepository) Entries(ctx context.Context, limit, offset int) ([]LedgerEntry, error) {
	var rows []ledgerRow
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала пула: %w", err)
	}
	return toEntries(rows), nil
}

func (r *GormRepository) Snapshot(ctx context.Context) (int64, []LedgerEntry, error) {
	var (
		balance int64
		rows    []ledgerRow
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if balance, err = currentBalance(tx); err != nil {
			return err
		}
		if err := tx.Order("id ASC").Find(&rows).Error; err != nil {
			return fmt.Errorf("ошибка чтения журнала пула: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return balance, toEntries(rows), nil
}

func currentBalance(db *gorm.DB) (int64, error) {
	var row poolRow
	err := db.First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, common.ErrPoolNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса пула: %w", err)
	}
	return row.Balance, nil
}

func appendEntry(tx *gorm.DB, delta, resulting int64, meta Meta) error {
	row := ledgerRow{
		Delta:            delta,
		Reason:           meta.Reason,
		ActorRef:         meta.ActorRef,
		UserID:           meta.UserID,
		RewardKind:       meta.RewardKind,
		SessionRef:       meta.SessionRef,
		Rollback:         meta.Rollback,
		ResultingBalance: resulting,
		CreatedAt:        time.Now().UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("ошибка записи в журнал пула: %w", err)
	}
	return nil
}

func toEntries(rows []ledgerRow) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries
}
