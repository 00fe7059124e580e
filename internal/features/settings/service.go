// Package settings: service.go отдаёт текущие настройки наград движку.
// Значения кэшируются на SETTINGS_CACHE_TTL; любое изменение через Update
// сбрасывает кэш сразу.
package settings

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Provider читает настройки из Store и держит их в кэше.
type Provider struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	cached   RewardSettings
	loadedAt time.Time
	loaded   bool
}

// NewProvider создаёт провайдер настроек. ttl == 0 отключает кэш.
func NewProvider(store Store, ttl time.Duration) *Provider {
	return &Provider{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get возвращает текущие настройки.
// Если хранилище недоступно, отдаются последние прочитанные значения,
// а до первого успешного чтения: значения по умолчанию.
func (p *Provider) Get(ctx context.Context) RewardSettings {
	p.mu.RLock()
	if p.loaded && p.ttl > 0 && p.now().Sub(p.loadedAt) < p.ttl {
		s := p.cached
		p.mu.RUnlock()
		return s
	}
	p.mu.RUnlock()

	s, err := p.Refresh(ctx)
	if err != nil {
		log.WithError(err).Warn("Настройки наград недоступны, используются последние известные")
	}
	return s
}

// Refresh принудительно перечитывает настройки из хранилища.
// При ошибке возвращает последние известные значения вместе с ошибкой.
func (p *Provider) Refresh(ctx context.Context) (RewardSettings, error) {
	s, err := p.load(ctx)
	if err != nil {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.loaded {
			return p.cached, err
		}
		return Defaults(), err
	}

	p.mu.Lock()
	p.cached = s
	p.loadedAt = p.now()
	p.loaded = true
	p.mu.Unlock()
	return s, nil
}

// Invalidate сбрасывает кэш: следующий Get пойдёт в хранилище.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.loaded = false
	p.mu.Unlock()
}

// Update проверяет и сохраняет набор изменений.
// Если хотя бы одно значение некорректно, не сохраняется ничего.
func (p *Provider) Update(ctx context.Context, changes map[string]string) (RewardSettings, error) {
	current, err := p.load(ctx)
	if err != nil {
		return RewardSettings{}, err
	}

	updated := current
	for key, value := range changes {
		if err := updated.Apply(key, value); err != nil {
			return RewardSettings{}, err
		}
	}

	// Сохраняем в каноническом виде, чтобы "60" и "1m" не расходились в таблице
	encoded := updated.Encode()
	toStore := make(map[string]string, len(changes))
	for key := range changes {
		k := normalizeKey(key)
		toStore[k] = encoded[k]
	}
	if err := p.store.Upsert(ctx, toStore); err != nil {
		return RewardSettings{}, fmt.Errorf("ошибка сохранения настроек: %w", err)
	}

	p.Invalidate()
	log.WithField("changes", toStore).Info("Настройки наград обновлены")
	return updated, nil
}

// SeedDefaults дописывает в хранилище ключи, которых там ещё нет.
// Значения из файла (если путь задан) имеют приоритет над встроенными.
func (p *Provider) SeedDefaults(ctx context.Context, path string) error {
	seed := Defaults()
	if path != "" {
		fromFile, err := LoadSeedFile(path)
		if err != nil {
			return err
		}
		seed = fromFile
	}

	inserted, err := p.store.InsertMissing(ctx, seed.Encode())
	if err != nil {
		return fmt.Errorf("ошибка записи начальных настроек: %w", err)
	}
	if inserted > 0 {
		log.Infof("Записано начальных настроек наград: %d", inserted)
	}
	p.Invalidate()
	return nil
}

// LoadSeedFile читает YAML с начальными настройками:
//
//	broadcaster_amount: 25
//	viewer_min_stay: 30s
//	fail_safe_mode: reduce
//
// Отсутствующие ключи берутся из Defaults.
func LoadSeedFile(path string) (RewardSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RewardSettings{}, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return RewardSettings{}, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}

	s := Defaults()
	for key, value := range raw {
		if err := s.Apply(key, fmt.Sprint(value)); err != nil {
			return RewardSettings{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return s, nil
}

func (p *Provider) load(ctx context.Context) (RewardSettings, error) {
	values, err := p.store.All(ctx)
	if err != nil {
		return RewardSettings{}, err
	}
	return decode(values), nil
}

// decode собирает настройки из строк. Некорректные значения в таблице
// пропускаются с предупреждением, вместо них остаются значения по умолчанию.
func decode(values map[string]string) RewardSettings {
	s := Defaults()
	for key, value := range values {
		if err := s.Apply(key, value); err != nil {
			log.WithError(err).Warnf("Пропущена настройка %s", key)
		}
	}
	return s
}
