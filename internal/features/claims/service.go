// Package claims: service.go привязывает операции с наградами к текущему дню UTC.
package claims

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Service: журнал наград.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService создаёт сервис наград.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock подменяет часы (для тестов).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Today возвращает текущий день наград (полночь UTC).
func (s *Service) Today() time.Time {
	return common.RewardDate(s.now())
}

// ClaimedToday проверяет, получал ли пользователь награду сегодня.
func (s *Service) ClaimedToday(ctx context.Context, userID int64, kind common.RewardKind) (bool, error) {
	return s.store.Exists(ctx, userID, kind, s.Today())
}

// Record записывает сегодняшнюю награду.
// common.ErrDuplicateClaim означает, что награду уже записал другой вызов.
func (s *Service) Record(ctx context.Context, userID int64, kind common.RewardKind, sessionRef string, amount int64) (Claim, error) {
	return s.store.Insert(ctx, Claim{
		UserID:     userID,
		Kind:       kind,
		Date:       s.Today(),
		SessionRef: sessionRef,
		Amount:     amount,
	})
}

// Reset удаляет сегодняшнюю награду пользователя. Только для администратора.
func (s *Service) Reset(ctx context.Context, userID int64, kind common.RewardKind, actor string) (bool, error) {
	day := s.Today()
	deleted, err := s.store.Delete(ctx, userID, kind, day)
	if err != nil {
		return false, err
	}

	log.WithFields(log.Fields{
		"admin_action": "reset_claim",
		"actor":        actor,
		"user_id":      userID,
		"kind":         kind,
		"date":         common.FormatDate(day),
		"deleted":      deleted,
	}).Warn("Администратор сбросил ежедневную награду")
	return deleted, nil
}

// List возвращает страницу журнала наград.
func (s *Service) List(ctx context.Context, f Filter) ([]Claim, error) {
	f.Limit, f.Offset = common.Page(f.Limit, f.Offset)
	return s.store.List(ctx, f)
}

// Summary возвращает итоги выдачи за день.
func (s *Service) Summary(ctx context.Context, day time.Time) ([]DaySummary, error) {
	return s.store.Summary(ctx, common.RewardDate(day))
}
