// Package members: service.go регистрирует пользователей при первых событиях
// и отдаёт движку наград время создания аккаунта.
package members

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Service управляет аккаунтами.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService создаёт новый сервис участников.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Touch гарантирует, что пользователь есть в базе. Новый аккаунт получает
// joined_at = сейчас; у существующего обновляются только имя и username.
func (s *Service) Touch(ctx context.Context, userID int64, username, firstName string) error {
	err := s.store.Upsert(ctx, Member{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		JoinedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("ошибка регистрации участника: %w", err)
	}
	return nil
}

// Register создаёт аккаунт с известной датой создания (импорт из внешней системы).
// Если аккаунт уже заведён событием, его joined_at заменяется переданным.
func (s *Service) Register(ctx context.Context, m Member) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.now().UTC()
	}
	if err := s.store.Register(ctx, m); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id":   m.UserID,
		"joined_at": m.JoinedAt,
	}).Info("Участник зарегистрирован")
	return nil
}

// GetByUserID возвращает участника по его Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.store.GetByUserID(ctx, userID)
}

// AccountCreatedAt возвращает время создания аккаунта.
// Если аккаунта нет: ошибка с common.ErrUserNotFound.
func (s *Service) AccountCreatedAt(ctx context.Context, userID int64) (time.Time, error) {
	m, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	return m.JoinedAt, nil
}
