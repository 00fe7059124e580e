// Package admin: service.go собирает операции админки поверх сервисов
// настроек, пула, журнала наград и выдачи. Каждое изменяющее действие
// пишется в лог с полем admin_action и логином администратора.
package admin

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/features/claims"
	"serotonyl.ru/stream-rewards/internal/features/members"
	"serotonyl.ru/stream-rewards/internal/features/pool"
	"serotonyl.ru/stream-rewards/internal/features/rewards"
	"serotonyl.ru/stream-rewards/internal/features/settings"
)

// RewardIssuer: ручная выдача награды в обход таймера.
type RewardIssuer interface {
	ForceIssue(ctx context.Context, userID int64, kind common.RewardKind, sessionID, actor string) (rewards.Result, error)
}

// Service управляет админ-панелью.
type Service struct {
	settings *settings.Provider
	pool     *pool.Service
	claims   *claims.Service
	members  *members.Service
	issuer   RewardIssuer
}

// NewService создаёт сервис админ-панели.
func NewService(settingsProvider *settings.Provider, poolService *pool.Service, claimService *claims.Service, memberService *members.Service, issuer RewardIssuer) *Service {
	return &Service{
		settings: settingsProvider,
		pool:     poolService,
		claims:   claimService,
		members:  memberService,
		issuer:   issuer,
	}
}

// Actor формирует ссылку на администратора для журнала пула.
func Actor(login string) string {
	return "admin:" + login
}

// Settings возвращает актуальные настройки наград в обход кэша.
func (s *Service) Settings(ctx context.Context) (settings.RewardSettings, error) {
	return s.settings.Refresh(ctx)
}

// UpdateSettings проверяет и сохраняет изменения настроек.
func (s *Service) UpdateSettings(ctx context.Context, changes map[string]string, actor string) (settings.RewardSettings, error) {
	updated, err := s.settings.Update(ctx, changes)
	if err != nil {
		return settings.RewardSettings{}, err
	}
	log.WithFields(log.Fields{
		"admin_action": "update_settings",
		"actor":        actor,
		"changes":      changes,
	}).Warn("Администратор изменил настройки наград")
	return updated, nil
}

// PoolStatus возвращает баланс пула и действующий режим fail-safe.
func (s *Service) PoolStatus(ctx context.Context) (PoolStatus, error) {
	balance, err := s.pool.Balance(ctx)
	if err != nil {
		return PoolStatus{}, err
	}
	cfg := s.settings.Get(ctx)
	return PoolStatus{
		Balance:        balance,
		Threshold:      cfg.PoolThreshold,
		FailSafeMode:   cfg.FailSafeMode,
		ReductionPct:   cfg.PoolReductionPct,
		BelowThreshold: balance < cfg.PoolThreshold,
	}, nil
}

// TopUp пополняет пул.
func (s *Service) TopUp(ctx context.Context, amount int64, actor string) (int64, error) {
	balance, err := s.pool.TopUp(ctx, amount, actor)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"admin_action": "pool_topup",
		"actor":        actor,
		"amount":       amount,
		"balance":      balance,
	}).Warn("Администратор пополнил пул")
	return balance, nil
}

// Ledger возвращает страницу журнала пула.
func (s *Service) Ledger(ctx context.Context, limit, offset int) ([]pool.LedgerEntry, error) {
	return s.pool.Entries(ctx, limit, offset)
}

// VerifyPool сверяет журнал пула с балансом.
func (s *Service) VerifyPool(ctx context.Context) (pool.Verification, error) {
	return s.pool.Verify(ctx)
}

// Claims возвращает страницу журнала наград.
func (s *Service) Claims(ctx context.Context, f claims.Filter) ([]claims.Claim, error) {
	return s.claims.List(ctx, f)
}

// DaySummary возвращает итоги выдачи за день.
func (s *Service) DaySummary(ctx context.Context, day time.Time) ([]claims.DaySummary, error) {
	return s.claims.Summary(ctx, day)
}

// ResetClaim удаляет сегодняшнюю награду пользователя, чтобы её можно было получить снова.
// Монеты при этом не возвращаются.
func (s *Service) ResetClaim(ctx context.Context, userID int64, kind common.RewardKind, actor string) (bool, error) {
	if !kind.Valid() {
		return false, common.ErrUnknownRewardKind
	}
	return s.claims.Reset(ctx, userID, kind, actor)
}

// ForceIssue выдаёт награду сразу.
func (s *Service) ForceIssue(ctx context.Context, userID int64, kind common.RewardKind, sessionID, actor string) (rewards.Result, error) {
	if !kind.Valid() {
		return rewards.Result{}, common.ErrUnknownRewardKind
	}
	res, err := s.issuer.ForceIssue(ctx, userID, kind, sessionID, actor)

	entry := log.WithFields(log.Fields{
		"admin_action": "force_issue",
		"actor":        actor,
		"user_id":      userID,
		"kind":         kind,
		"session":      sessionID,
		"status":       res.Status,
	})
	if err != nil {
		entry.WithError(err).Error("Ручная выдача награды не удалась")
		return res, err
	}
	entry.Warn("Администратор выдал награду вручную")
	return res, nil
}

// RegisterMember заводит аккаунт с известной датой создания.
func (s *Service) RegisterMember(ctx context.Context, m members.Member, actor string) error {
	if err := s.members.Register(ctx, m); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"admin_action": "register_member",
		"actor":        actor,
		"user_id":      m.UserID,
	}).Info("Администратор зарегистрировал участника")
	return nil
}
