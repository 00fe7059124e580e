// Package presence отвечает на вопросы «идёт ли эфир» и «смотрит ли зритель».
// События эфира (старт, вход, выход) приходят через HTTP API и пишутся в трекер;
// движок наград читает его при срабатывании отложенной награды.
package presence

import (
	"context"
	"sync"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Tracker хранит, какие эфиры идут и кто их смотрит.
type Tracker interface {
	IsBroadcastLive(ctx context.Context, sessionID string) (bool, error)
	IsViewerPresent(ctx context.Context, sessionID string, userID int64) (bool, error)

	StartBroadcast(ctx context.Context, sessionID string, broadcasterID int64) error
	// EndBroadcast завершает эфир, если его ведёт broadcasterID.
	// Чужой эфир не трогается: common.ErrNotBroadcaster.
	EndBroadcast(ctx context.Context, sessionID string, broadcasterID int64) error
	Join(ctx context.Context, sessionID string, userID int64) error
	Leave(ctx context.Context, sessionID string, userID int64) error
}

type broadcast struct {
	broadcasterID int64
	viewers       map[int64]struct{}
}

// MemoryTracker: трекер в памяти процесса (один экземпляр сервиса).
type MemoryTracker struct {
	mu       sync.RWMutex
	sessions map[string]*broadcast
}

// NewMemoryTracker создаёт пустой трекер.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{sessions: make(map[string]*broadcast)}
}

func (m *MemoryTracker) IsBroadcastLive(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok, nil
}

// IsViewerPresent: зритель считается присутствующим, только пока эфир идёт.
func (m *MemoryTracker) IsViewerPresent(_ context.Context, sessionID string, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.sessions[sessionID]
	if !ok {
		return false, nil
	}
	_, present := b.viewers[userID]
	return present, nil
}

func (m *MemoryTracker) StartBroadcast(_ context.Context, sessionID string, broadcasterID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.sessions[sessionID]; ok {
		b.broadcasterID = broadcasterID
		return nil
	}
	m.sessions[sessionID] = &broadcast{broadcasterID: broadcasterID, viewers: make(map[int64]struct{})}
	return nil
}

// EndBroadcast завершает эфир вместе со всеми зрителями.
// Уже закончившийся эфир завершать нечего, это не ошибка.
func (m *MemoryTracker) EndBroadcast(_ context.Context, sessionID string, broadcasterID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	if b.broadcasterID != broadcasterID {
		return common.ErrNotBroadcaster
	}
	delete(m.sessions, sessionID)
	return nil
}

// Join отмечает зрителя. В эфир, который не идёт, войти нельзя.
func (m *MemoryTracker) Join(_ context.Context, sessionID string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.sessions[sessionID]
	if !ok {
		return common.ErrBroadcastNotLive
	}
	b.viewers[userID] = struct{}{}
	return nil
}

func (m *MemoryTracker) Leave(_ context.Context, sessionID string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.sessions[sessionID]; ok {
		delete(b.viewers, userID)
	}
	return nil
}

// Viewers возвращает число зрителей эфира.
func (m *MemoryTracker) Viewers(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.sessions[sessionID]; ok {
		return len(b.viewers)
	}
	return 0
}
