// Package pool: service.go содержит правила работы с пулом поверх Store:
// проверку сумм, логирование движений и сверку журнала.
package pool

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
)

// BalanceObserver получает новый баланс после каждого движения пула (метрики).
type BalanceObserver interface {
	ObservePoolBalance(balance int64)
}

// Service: книга пула.
type Service struct {
	store    Store
	observer BalanceObserver
}

// NewService создаёт сервис пула. observer может быть nil.
func NewService(store Store, observer BalanceObserver) *Service {
	return &Service{store: store, observer: observer}
}

// Init создаёт пул при первом запуске.
func (s *Service) Init(ctx context.Context, initial int64) error {
	if initial < 0 {
		return common.ErrInvalidAmount
	}
	created, err := s.store.Init(ctx, initial)
	if err != nil {
		return err
	}
	if created {
		log.Infof("Пул наград создан, начальный баланс: %s", common.FormatBalance(initial))
	}

	balance, err := s.store.Balance(ctx)
	if err != nil {
		return err
	}
	s.observe(balance)
	return nil
}

// Balance возвращает текущий баланс пула.
func (s *Service) Balance(ctx context.Context) (int64, error) {
	return s.store.Balance(ctx)
}

// Debit списывает amount из пула или возвращает ErrInsufficientFunds.
func (s *Service) Debit(ctx context.Context, amount int64, meta Meta) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	balance, err := s.store.Debit(ctx, amount, meta)
	if err != nil {
		return balance, err
	}

	log.WithFields(log.Fields{
		"amount":  amount,
		"balance": balance,
		"reason":  meta.Reason,
		"session": meta.SessionRef,
	}).Debugf("Списание из пула: %s", common.FormatCoinsAmount(-amount))
	s.observe(balance)
	return balance, nil
}

// Credit пополняет пул. Используется и для пополнений, и для отката списаний.
func (s *Service) Credit(ctx context.Context, amount int64, meta Meta) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	balance, err := s.store.Credit(ctx, amount, meta)
	if err != nil {
		return 0, err
	}

	entry := log.WithFields(log.Fields{
		"amount":  amount,
		"balance": balance,
		"reason":  meta.Reason,
		"actor":   meta.ActorRef,
	})
	if meta.Rollback {
		entry.Warnf("Откат списания из пула: %s", common.FormatCoinsAmount(amount))
	} else {
		entry.Infof("Пополнение пула: %s", common.FormatCoinsAmount(amount))
	}
	s.observe(balance)
	return balance, nil
}

// TopUp: пополнение пула администратором.
func (s *Service) TopUp(ctx context.Context, amount int64, actor string) (int64, error) {
	return s.Credit(ctx, amount, Meta{Reason: ReasonTopUp, ActorRef: actor})
}

// Entries возвращает страницу журнала.
func (s *Service) Entries(ctx context.Context, limit, offset int) ([]LedgerEntry, error) {
	limit, offset = common.Page(limit, offset)
	return s.store.Entries(ctx, limit, offset)
}

// Verify проигрывает журнал с первой записи и сверяет результат с балансом.
// Каждая запись должна давать resulting_balance = предыдущий + delta и не уходить в минус.
func (s *Service) Verify(ctx context.Context) (Verification, error) {
	balance, entries, err := s.store.Snapshot(ctx)
	if err != nil {
		return Verification{}, fmt.Errorf("ошибка чтения пула для сверки: %w", err)
	}

	v := Verification{Balance: balance, Entries: len(entries)}
	var running int64
	for _, e := range entries {
		running += e.Delta
		if running != e.ResultingBalance && v.FirstMismatchID == 0 {
			v.FirstMismatchID = e.ID
		}
		if e.ResultingBalance < 0 || running < 0 {
			v.NegativeEntries++
		}
	}
	v.ReplayedBalance = running
	v.Consistent = v.FirstMismatchID == 0 && v.NegativeEntries == 0 && running == balance

	if !v.Consistent {
		log.WithFields(log.Fields{
			"balance":        v.Balance,
			"replayed":       v.ReplayedBalance,
			"first_mismatch": v.FirstMismatchID,
			"negative":       v.NegativeEntries,
		}).Error("Журнал пула не сходится с балансом")
	}
	return v, nil
}

func (s *Service) observe(balance int64) {
	if s.observer != nil {
		s.observer.ObservePoolBalance(balance)
	}
}
