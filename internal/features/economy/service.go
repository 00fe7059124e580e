// Package economy: service.go содержит правила работы с кошельками:
// проверку сумм и зачисление/откат ежедневных наград.
package economy

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Service управляет кошельками пользователей.
type Service struct {
	store Store
}

// NewService создаёт новый сервис экономики.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetBalance возвращает кошелёк пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (Balance, error) {
	return s.store.GetBalance(ctx, userID)
}

// GetTransactions возвращает страницу истории операций.
func (s *Service) GetTransactions(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error) {
	limit, offset = common.Page(limit, offset)
	return s.store.GetTransactions(ctx, userID, limit, offset)
}

// Credit зачисляет награду на кошелёк.
func (s *Service) Credit(ctx context.Context, userID, amount int64, description string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	balance, err := s.store.AddBalance(ctx, userID, amount, TxTypeDailyReward, description)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"balance": balance,
	}).Debug("Награда зачислена на кошелёк")
	return nil
}

// Revert забирает ранее зачисленную награду (компенсация при сбое выдачи).
func (s *Service) Revert(ctx context.Context, userID, amount int64, description string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	balance, err := s.store.DeductBalance(ctx, userID, amount, TxTypeRewardRevert, description)
	if err != nil {
		return fmt.Errorf("ошибка отката начисления user_id=%d: %w", userID, err)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"balance": balance,
	}).Warn("Начисление награды отменено")
	return nil
}
