// Package jobs управляет фоновыми задачами движка наград.
// scheduler.go настраивает расписание (cron, UTC): ежечасная проверка пула,
// итоги выдачи за прошедший день и обновление кэша настроек.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/features/claims"
	"serotonyl.ru/stream-rewards/internal/features/pool"
	"serotonyl.ru/stream-rewards/internal/features/settings"
)

// Расписание задач
const (
	SpecPoolWatch       = "0 * * * *"
	SpecDailySummary    = "5 0 * * *"
	SpecSettingsRefresh = "@every 1m"
)

// PoolReader: то, что нужно от пула фоновым задачам.
type PoolReader interface {
	Balance(ctx context.Context) (int64, error)
	Verify(ctx context.Context) (pool.Verification, error)
}

// SettingsReader: источник настроек с принудительным обновлением.
type SettingsReader interface {
	Get(ctx context.Context) settings.RewardSettings
	Refresh(ctx context.Context) (settings.RewardSettings, error)
}

// ClaimSummarizer считает итоги выдачи за день.
type ClaimSummarizer interface {
	Summary(ctx context.Context, day time.Time) ([]claims.DaySummary, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	pool     PoolReader
	settings SettingsReader
	claims   ClaimSummarizer
	observer pool.BalanceObserver
	now      func() time.Time
}

// NewScheduler создаёт планировщик задач. Награды считаются по дням UTC,
// поэтому и расписание в UTC. observer может быть nil.
func NewScheduler(poolReader PoolReader, settingsReader SettingsReader, summarizer ClaimSummarizer, observer pool.BalanceObserver) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		pool:     poolReader,
		settings: settingsReader,
		claims:   summarizer,
		observer: observer,
		now:      time.Now,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context)
	}{
		{SpecPoolWatch, "pool_watch", s.PoolWatch},
		{SpecDailySummary, "daily_summary", s.DailySummary},
		{SpecSettingsRefresh, "settings_refresh", s.RefreshSettings},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			log.WithField("job", job.name).Debug("[CRON] Запуск задачи")
			job.run(ctx)
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Info("Планировщик задач запущен (UTC)")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// PoolWatch обновляет метрику баланса, предупреждает о низком пуле
// и сверяет журнал пула с балансом.
func (s *Scheduler) PoolWatch(ctx context.Context) {
	balance, err := s.pool.Balance(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Не удалось получить баланс пула")
		return
	}
	if s.observer != nil {
		s.observer.ObservePoolBalance(balance)
	}

	cfg := s.settings.Get(ctx)
	if balance < cfg.PoolThreshold {
		log.WithFields(log.Fields{
			"balance":   balance,
			"threshold": cfg.PoolThreshold,
			"mode":      cfg.FailSafeMode,
		}).Warn("[CRON] Баланс пула ниже порога")
	}

	v, err := s.pool.Verify(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Не удалось сверить журнал пула")
		return
	}
	fields := log.Fields{"balance": v.Balance, "replayed": v.ReplayedBalance, "entries": v.Entries}
	if !v.Consistent {
		fields["first_mismatch_id"] = v.FirstMismatchID
		fields["negative_entries"] = v.NegativeEntries
		log.WithFields(fields).Error("[CRON] Журнал пула не сходится с балансом")
		return
	}
	log.WithFields(fields).Debug("[CRON] Журнал пула сходится")
}

// DailySummary пишет в лог итоги выдачи за вчерашний день (UTC).
func (s *Scheduler) DailySummary(ctx context.Context) {
	day := common.RewardDate(s.now()).AddDate(0, 0, -1)
	summary, err := s.claims.Summary(ctx, day)
	if err != nil {
		log.WithError(err).Error("[CRON] Не удалось посчитать итоги дня")
		return
	}

	var count, amount int64
	for _, row := range summary {
		count += row.Count
		amount += row.Amount
		log.WithFields(log.Fields{
			"date":   common.FormatDate(day),
			"kind":   row.Kind,
			"count":  row.Count,
			"amount": row.Amount,
		}).Info("[CRON] Итоги выдачи")
	}
	log.Infof("[CRON] За %s выдано наград: %d на %s", common.FormatDate(day), count, common.FormatBalance(amount))
}

// RefreshSettings перечитывает настройки из таблицы, включая правки в обход API.
func (s *Scheduler) RefreshSettings(ctx context.Context) {
	if _, err := s.settings.Refresh(ctx); err != nil {
		log.WithError(err).Warn("[CRON] Не удалось обновить настройки наград")
	}
}
