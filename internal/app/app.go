// Package app инициализирует все компоненты движка наград.
// app.go собирает хранилище, сервисы, планировщики и HTTP API в один объект
// и управляет их запуском и остановкой.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"serotonyl.ru/stream-rewards/internal/config"
	"serotonyl.ru/stream-rewards/internal/db/postgres"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
	"serotonyl.ru/stream-rewards/internal/features/admin"
	"serotonyl.ru/stream-rewards/internal/features/claims"
	"serotonyl.ru/stream-rewards/internal/features/economy"
	"serotonyl.ru/stream-rewards/internal/features/members"
	"serotonyl.ru/stream-rewards/internal/features/pool"
	"serotonyl.ru/stream-rewards/internal/features/presence"
	"serotonyl.ru/stream-rewards/internal/features/rewards"
	"serotonyl.ru/stream-rewards/internal/features/settings"
	"serotonyl.ru/stream-rewards/internal/httpapi"
	"serotonyl.ru/stream-rewards/internal/httpapi/middleware"
	"serotonyl.ru/stream-rewards/internal/jobs"
	"serotonyl.ru/stream-rewards/internal/metrics"
	"serotonyl.ru/stream-rewards/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	cfg       *config.Config
	server    *http.Server
	deferred  *jobs.Deferred
	scheduler *jobs.Scheduler
	limiter   *middleware.RateLimiter
	adminRL   *middleware.RateLimiter

	// Закрываются в обратном порядке после остановки
	closers []func()
}

// stores: хранилища всех модулей для выбранного драйвера.
type stores struct {
	settings settings.Store
	pool     pool.Store
	claims   claims.Store
	wallet   economy.Store
	members  members.Store
	attempts admin.AttemptStore
	health   func(ctx context.Context) error
	close    func()
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	// === 1. База данных ===
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	// === 2. Метрики и сервисы ===
	m := metrics.New()

	settingsProvider := settings.NewProvider(st.settings, cfg.SettingsCacheTTL)
	if err := settingsProvider.SeedDefaults(ctx, cfg.RewardsSettingsFile); err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка инициализации настроек наград: %w", err)
	}

	poolService := pool.NewService(st.pool, m)
	if err := poolService.Init(ctx, cfg.PoolInitialBalance); err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка инициализации пула: %w", err)
	}

	claimService := claims.NewService(st.claims)
	wallet := economy.NewService(st.wallet)
	memberService := members.NewService(st.members)

	// === 3. Присутствие в эфире ===
	tracker, err := newTracker(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closer, ok := tracker.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() {
			if err := closer.Close(); err != nil {
				log.WithError(err).Warn("Ошибка закрытия Redis")
			}
		})
	}

	// === 4. Уведомления ===
	notifier, err := newNotifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 5. Выдача наград ===
	issuer := rewards.NewIssuer(rewards.IssuerConfig{
		Settings:      settingsProvider,
		Claims:        claimService,
		Accounts:      memberService,
		Pool:          poolService,
		Wallet:        wallet,
		Notifier:      notifier,
		Metrics:       m,
		FailOpen:      cfg.RewardsFailOpen,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	a.deferred = jobs.NewDeferred(jobs.WithPendingGauge(m.SetPending))
	rewardService := rewards.NewService(issuer, a.deferred, tracker, cfg.LivenessTimeout)

	// === 6. Админка ===
	adminService := admin.NewService(settingsProvider, poolService, claimService, memberService, rewardService)
	auth := admin.NewAuthenticator(st.attempts, cfg.AdminUser, cfg.AdminPasswordHash)

	// === 7. HTTP API ===
	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitBurst)
	a.adminRL = middleware.NewRateLimiter(cfg.AdminRateLimitRequests, cfg.AdminRateLimitBurst)
	api := httpapi.New(httpapi.Config{
		Rewards:  rewardService,
		Presence: tracker,
		Members:  memberService,
		Wallet:   wallet,
		Admin:    adminService,
		Auth:     auth,
		Limiter:  a.limiter,
		Metrics:  m.Handler(),
		Observer: m,
		Health:   st.health,

		AdminLimiter: a.adminRL,
	})
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// === 8. Планировщик задач ===
	a.scheduler = jobs.NewScheduler(poolService, settingsProvider, claimService, m)

	return a, nil
}

// Run запускает HTTP-сервер и cron и блокируется до отмены ctx.
// После отмены сервер перестаёт принимать запросы, отложенные награды
// отменяются, ресурсы закрываются.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("ошибка запуска планировщика: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("HTTP API слушает %s", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer cancel()

	a.scheduler.Stop()
	err := a.server.Shutdown(shutdownCtx)
	if err != nil {
		log.WithError(err).Warn("HTTP-сервер остановлен не штатно")
	}
	if derr := a.deferred.Stop(shutdownCtx); derr != nil {
		log.WithError(derr).Warn("Не все отложенные награды завершились до остановки")
	}
	a.limiter.Close()
	a.adminRL.Close()
	return err
}

// Close освобождает ресурсы (БД, Redis). Повторный вызов безопасен.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := autoMigrate(db); err != nil {
			sqlite.Close(db)
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return &stores{
			settings: settings.NewGormRepository(db),
			pool:     pool.NewGormRepository(db),
			claims:   claims.NewGormRepository(db),
			wallet:   economy.NewGormRepository(db),
			members:  members.NewGormRepository(db),
			attempts: admin.NewGormRepository(db),
			health: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			close: func() { sqlite.Close(db) },
		}, nil
	default:
		db, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.ApplyMigrations(ctx, db, migrations); err != nil {
			db.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return pgStores(db), nil
	}
}

func pgStores(db *pgxpool.Pool) *stores {
	return &stores{
		settings: settings.NewRepository(db),
		pool:     pool.NewRepository(db),
		claims:   claims.NewRepository(db),
		wallet:   economy.NewRepository(db),
		members:  members.NewRepository(db),
		attempts: admin.NewRepository(db),
		health:   db.Ping,
		close:    db.Close,
	}
}

func autoMigrate(db *gorm.DB) error {
	for _, migrate := range []func(*gorm.DB) error{
		members.AutoMigrate,
		economy.AutoMigrate,
		settings.AutoMigrate,
		pool.AutoMigrate,
		claims.AutoMigrate,
		admin.AutoMigrate,
	} {
		if err := migrate(db); err != nil {
			return err
		}
	}
	return nil
}

func newTracker(ctx context.Context, cfg *config.Config) (presence.Tracker, error) {
	if cfg.PresenceBackend == config.PresenceRedis {
		tracker, err := presence.NewRedisTracker(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.WithField("addr", cfg.RedisAddr).Info("Присутствие хранится в Redis")
		return tracker, nil
	}
	log.Warn("Присутствие хранится в памяти процесса: подходит только для одного экземпляра")
	return presence.NewMemoryTracker(), nil
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.TelegramBotToken == "" {
		log.Info("TELEGRAM_BOT_TOKEN не задан, уведомления пишутся только в лог")
		return notify.LogNotifier{}, nil
	}
	n, err := notify.NewTelegramNotifier(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-уведомлений: %w", err)
	}
	return n, nil
}
