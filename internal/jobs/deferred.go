// Package jobs: deferred.go держит отложенные награды: по одному таймеру
// на пару (сессия, участник). Таймер срабатывает один раз; отмена до
// срабатывания гарантирует, что функция не будет вызвана никогда.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Key: пара (сессия, участник).
type Key struct {
	SessionID     string
	ParticipantID int64
}

// FireFunc вызывается по истечении окна.
type FireFunc func(ctx context.Context)

// PendingCommit: взведённая, ещё не сработавшая награда.
type PendingCommit struct {
	Key     Key
	Kind    string
	ArmedAt time.Time
	FiresAt time.Time
	Token   string
}

// Timer: одноразовый таймер. *time.Timer подходит как есть.
type Timer interface {
	Stop() bool
}

// AfterFunc запускает f через d.
type AfterFunc func(d time.Duration, f func()) Timer

type pendingEntry struct {
	commit PendingCommit
	timer  Timer
}

// Deferred: планировщик отложенных наград.
type Deferred struct {
	afterFunc AfterFunc
	now       func() time.Time
	onChange  func(pending int)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[Key]*pendingEntry
	stopped bool
}

// DeferredOption настраивает планировщик.
type DeferredOption func(*Deferred)

// WithAfterFunc подменяет фабрику таймеров (для тестов).
func WithAfterFunc(f AfterFunc) DeferredOption {
	return func(d *Deferred) { d.afterFunc = f }
}

// WithClock подменяет часы.
func WithClock(now func() time.Time) DeferredOption {
	return func(d *Deferred) { d.now = now }
}

// WithPendingGauge передаёт число ожидающих наград после каждого изменения.
func WithPendingGauge(f func(pending int)) DeferredOption {
	return func(d *Deferred) { d.onChange = f }
}

// NewDeferred создаёт планировщик.
func NewDeferred(opts ...DeferredOption) *Deferred {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Deferred{
		afterFunc: func(delay time.Duration, f func()) Timer { return time.AfterFunc(delay, f) },
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[Key]*pendingEntry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Arm взводит таймер для ключа. Существующий таймер того же ключа
// отменяется до создания нового, поэтому живой таймер на ключ всегда один.
func (d *Deferred) Arm(key Key, kind string, delay time.Duration, fire FireFunc) (PendingCommit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return PendingCommit{}, common.ErrSchedulerStopped
	}

	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
		delete(d.pending, key)
		log.WithFields(log.Fields{
			"session": key.SessionID,
			"user_id": key.ParticipantID,
			"kind":    prev.commit.Kind,
		}).Debug("Отложенная награда перевзведена")
	}

	now := d.now()
	commit := PendingCommit{
		Key:     key,
		Kind:    kind,
		ArmedAt: now,
		FiresAt: now.Add(delay),
		Token:   uuid.NewString(),
	}
	token := commit.Token
	entry := &pendingEntry{commit: commit}
	entry.timer = d.afterFunc(delay, func() { d.fire(key, token, fire) })
	d.pending[key] = entry
	d.notifyChange()

	return commit, nil
}

// Cancel отменяет таймер ключа. Повторная отмена и отмена уже
// сработавшего таймера ничего не делают. Возвращает true, если таймер был отменён.
func (d *Deferred) Cancel(key Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(d.pending, key)
	d.notifyChange()
	return true
}

// Pending возвращает взведённую награду по ключу.
func (d *Deferred) Pending(key Key) (PendingCommit, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[key]
	if !ok {
		return PendingCommit{}, false
	}
	return entry.commit, true
}

// Len возвращает число взведённых таймеров.
func (d *Deferred) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop отменяет все взведённые таймеры и ждёт завершения уже сработавших.
// Если ctx истекает раньше, контекст сработавших вызовов отменяется.
func (d *Deferred) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for key, entry := range d.pending {
			entry.timer.Stop()
			delete(d.pending, key)
		}
		d.notifyChange()
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		log.Info("Планировщик отложенных наград остановлен")
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

// fire выполняется в горутине таймера. Запись удаляется до вызова fn,
// так что один PendingCommit срабатывает не больше одного раза.
func (d *Deferred) fire(key Key, token string, fn FireFunc) {
	d.mu.Lock()
	entry, ok := d.pending[key]
	if !ok || entry.commit.Token != token || d.stopped {
		// Таймер успел сработать, пока его отменяли или перевзводили
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.notifyChange()
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"session": key.SessionID,
				"user_id": key.ParticipantID,
			}).Errorf("Паника в отложенной награде: %v", r)
		}
	}()
	fn(d.ctx)
}

// notifyChange вызывается под d.mu.
func (d *Deferred) notifyChange() {
	if d.onChange != nil {
		d.onChange(len(d.pending))
	}
}
