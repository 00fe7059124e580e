// Package rewards: issuer.go проводит выдачу награды:
// проверка → списание из пула → зачисление на кошелёк → запись награды → уведомление.
// Если шаг после списания падает, уже сделанные шаги компенсируются,
// и финансовое состояние остаётся либо «применено всё», либо «не применено ничего».
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/features/claims"
	"serotonyl.ru/stream-rewards/internal/features/pool"
	"serotonyl.ru/stream-rewards/internal/features/settings"
	"serotonyl.ru/stream-rewards/internal/notify"
)

// Шаги выдачи (для логов и метрик)
const (
	stepPoolBalance  = "pool_balance"
	stepPoolDebit    = "pool_debit"
	stepWalletCredit = "wallet_credit"
	stepClaimInsert  = "claim_insert"
	stepPoolCredit   = "pool_credit"
	stepWalletRevert = "wallet_revert"
)

// SettingsSource отдаёт текущие настройки.
type SettingsSource interface {
	Get(ctx context.Context) settings.RewardSettings
}

// ClaimStore проверяет и записывает награды.
type ClaimStore interface {
	ClaimLookup
	Record(ctx context.Context, userID int64, kind common.RewardKind, sessionRef string, amount int64) (claims.Claim, error)
}

// PoolLedger: книга общего пула.
type PoolLedger interface {
	Balance(ctx context.Context) (int64, error)
	Debit(ctx context.Context, amount int64, meta pool.Meta) (int64, error)
	Credit(ctx context.Context, amount int64, meta pool.Meta) (int64, error)
}

// Wallet: кошельки пользователей.
type Wallet interface {
	Credit(ctx context.Context, userID, amount int64, description string) error
	Revert(ctx context.Context, userID, amount int64, description string) error
}

// Recorder принимает метрики выдачи.
type Recorder interface {
	Issued(kind string, amount int64)
	Denied(kind, status string)
	Failure(kind, step string)
	Compensation(step string)
}

type noopRecorder struct{}

func (noopRecorder) Issued(string, int64)   {}
func (noopRecorder) Denied(string, string)  {}
func (noopRecorder) Failure(string, string) {}
func (noopRecorder) Compensation(string)    {}

// Request: запрос на выдачу.
type Request struct {
	UserID     int64
	Kind       common.RewardKind
	SessionRef string
	Check      SupplementaryCheck // Может быть nil
	Actor      string             // Кто инициировал: "scheduler", "admin:<login>"
}

// Result: итог выдачи. Штатные отказы, это Granted=false без ошибки.
type Result struct {
	Granted    bool          `json:"granted"`
	Amount     int64         `json:"amount"`
	Status     Status        `json:"status"`
	Message    string        `json:"message"`
	Reduced    bool          `json:"reduced,omitempty"`
	AccountAge time.Duration `json:"account_age,omitempty"`
}

// IssuerConfig: зависимости выдачи.
type IssuerConfig struct {
	Settings      SettingsSource
	Claims        ClaimStore
	Accounts      AccountLookup
	Pool          PoolLedger
	Wallet        Wallet
	Notifier      notify.Notifier // nil: без уведомлений
	Metrics       Recorder        // nil: без метрик
	FailOpen      bool
	NotifyTimeout time.Duration
}

// Issuer выдаёт награды.
type Issuer struct {
	settings      SettingsSource
	claims        ClaimStore
	accounts      AccountLookup
	pool          PoolLedger
	wallet        Wallet
	notifier      notify.Notifier
	metrics       Recorder
	failOpen      bool
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewIssuer создаёт выдачу наград.
func NewIssuer(cfg IssuerConfig) *Issuer {
	i := &Issuer{
		settings:      cfg.Settings,
		claims:        cfg.Claims,
		accounts:      cfg.Accounts,
		pool:          cfg.Pool,
		wallet:        cfg.Wallet,
		notifier:      cfg.Notifier,
		metrics:       cfg.Metrics,
		failOpen:      cfg.FailOpen,
		notifyTimeout: cfg.NotifyTimeout,
		now:           time.Now,
	}
	if i.metrics == nil {
		i.metrics = noopRecorder{}
	}
	if i.notifyTimeout <= 0 {
		i.notifyTimeout = 5 * time.Second
	}
	return i
}

// Evaluate проверяет право на награду без выдачи.
func (i *Issuer) Evaluate(ctx context.Context, userID int64, kind common.RewardKind, check SupplementaryCheck) Eligibility {
	return Evaluate(ctx, Input{
		UserID:   userID,
		Kind:     kind,
		Settings: i.settings.Get(ctx),
		Claims:   i.claims,
		Accounts: i.accounts,
		Check:    check,
		FailOpen: i.failOpen,
		Now:      i.now(),
	})
}

// Issue выдаёт награду. Ошибка возвращается только при финансовом сбое,
// после того как сделанные шаги компенсированы.
func (i *Issuer) Issue(ctx context.Context, req Request) (Result, error) {
	if !req.Kind.Valid() {
		return Result{Status: StatusFailed, Message: "Неизвестный тип награды"}, common.ErrUnknownRewardKind
	}
	if req.Actor == "" {
		req.Actor = "issuer"
	}
	kind := string(req.Kind)
	logger := log.WithFields(log.Fields{
		"user_id": req.UserID,
		"kind":    kind,
		"session": req.SessionRef,
		"actor":   req.Actor,
	})

	// 1. Проверка права на награду
	s := i.settings.Get(ctx)
	elig := Evaluate(ctx, Input{
		UserID:   req.UserID,
		Kind:     req.Kind,
		Settings: s,
		Claims:   i.claims,
		Accounts: i.accounts,
		Check:    req.Check,
		FailOpen: i.failOpen,
		Now:      i.now(),
	})
	if !elig.Eligible() {
		i.metrics.Denied(kind, string(elig.Status))
		logger.WithField("status", elig.Status).Debug("Награда не положена")
		return Result{Status: elig.Status, Message: elig.Message, AccountAge: elig.AccountAge}, nil
	}

	// 2. Сумма с учётом состояния пула
	balance, err := i.pool.Balance(ctx)
	if err != nil {
		i.metrics.Failure(kind, stepPoolBalance)
		logger.WithField("step", stepPoolBalance).WithError(err).Error("Не удалось получить баланс пула")
		return Result{Status: StatusFailed, Message: "Пул наград недоступен"}, fmt.Errorf("баланс пула: %w", err)
	}
	amt := EffectiveAmount(s.Amount(req.Kind), balance, s)
	if amt.Suspended || amt.Effective <= 0 {
		i.metrics.Denied(kind, string(StatusPoolSuspended))
		logger.WithField("pool_balance", balance).Warn("Пул ниже порога, награды приостановлены")
		return Result{Status: StatusPoolSuspended, Message: "В пуле мало монет, награды приостановлены"}, nil
	}
	amount := amt.Effective
	logger = logger.WithField("amount", amount)

	meta := pool.Meta{
		Reason:     pool.ReasonReward,
		ActorRef:   req.Actor,
		UserID:     pool.UserIDRef(req.UserID),
		RewardKind: kind,
		SessionRef: req.SessionRef,
	}

	// 3. Списание из пула
	if _, err := i.pool.Debit(ctx, amount, meta); err != nil {
		i.metrics.Failure(kind, stepPoolDebit)
		logger.WithField("step", stepPoolDebit).WithError(err).Error("Не удалось списать награду из пула")
		return Result{Status: StatusFailed, Message: "Не удалось списать монеты из пула"}, err
	}

	// Компенсации выполняются даже если ctx вызывающего уже отменён
	compCtx := context.WithoutCancel(ctx)

	// 4. Зачисление на кошелёк
	if err := i.wallet.Credit(ctx, req.UserID, amount, req.Kind.Title()); err != nil {
		i.metrics.Failure(kind, stepWalletCredit)
		logger.WithField("step", stepWalletCredit).WithError(err).Error("Не удалось зачислить награду, откатываем списание")
		if cerr := i.refundPool(compCtx, amount, meta, logger); cerr != nil {
			return Result{Status: StatusFailed, Message: "Сбой выдачи награды"}, errors.Join(fmt.Errorf("%w: %w", common.ErrWalletCredit, err), cerr)
		}
		return Result{Status: StatusFailed, Message: "Сбой выдачи награды"}, fmt.Errorf("%w: %w", common.ErrWalletCredit, err)
	}

	// 5. Запись награды: уникальный индекс отсекает повторы за день
	if _, err := i.claims.Record(ctx, req.UserID, req.Kind, req.SessionRef, amount); err != nil {
		duplicate := errors.Is(err, common.ErrDuplicateClaim)
		step := stepClaimInsert
		if duplicate {
			// Параллельный вызов успел записать награду первым: его выдача
			// остаётся в силе, наша: откатывается целиком
			logger.Warn("Награда уже записана параллельным вызовом, откатываем повторную выдачу")
		} else {
			i.metrics.Failure(kind, step)
			logger.WithField("step", step).WithError(err).Error("Не удалось записать награду, откатываем выдачу")
		}

		cerr := errors.Join(
			i.revertWallet(compCtx, req.UserID, amount, kind, logger),
			i.refundPool(compCtx, amount, meta, logger),
		)

		if duplicate && cerr == nil {
			i.metrics.Denied(kind, string(StatusAlreadyClaimed))
			return Result{Status: StatusAlreadyClaimed, Message: "Награда за сегодня уже получена"}, nil
		}
		if duplicate {
			return Result{Status: StatusFailed, Message: "Сбой выдачи награды"}, cerr
		}
		return Result{Status: StatusFailed, Message: "Сбой выдачи награды"}, errors.Join(fmt.Errorf("%w: %w", common.ErrClaimInsert, err), cerr)
	}

	// 6. Уведомление: без влияния на результат
	i.notify(ctx, req, amt, logger)

	i.metrics.Issued(kind, amount)
	logger.WithField("reduced", amt.Reduced).Info("Ежедневная награда выдана")

	msg := fmt.Sprintf("Начислено %s", common.FormatBalance(amount))
	return Result{Granted: true, Amount: amount, Status: StatusGranted, Message: msg, Reduced: amt.Reduced}, nil
}

func (i *Issuer) refundPool(ctx context.Context, amount int64, meta pool.Meta, logger *log.Entry) error {
	meta.Reason = pool.ReasonRollback
	meta.Rollback = true
	if _, err := i.pool.Credit(ctx, amount, meta); err != nil {
		i.metrics.Failure(meta.RewardKind, stepPoolCredit)
		logger.WithField("step", stepPoolCredit).WithError(err).Error("КОМПЕНСАЦИЯ НЕ УДАЛАСЬ: монеты не возвращены в пул")
		return fmt.Errorf("откат списания из пула: %w", err)
	}
	i.metrics.Compensation(stepPoolCredit)
	return nil
}

func (i *Issuer) revertWallet(ctx context.Context, userID, amount int64, kind string, logger *log.Entry) error {
	if err := i.wallet.Revert(ctx, userID, amount, "Откат ежедневной награды"); err != nil {
		i.metrics.Failure(kind, stepWalletRevert)
		logger.WithField("step", stepWalletRevert).WithError(err).Error("КОМПЕНСАЦИЯ НЕ УДАЛАСЬ: начисление не отменено")
		return fmt.Errorf("откат начисления: %w", err)
	}
	i.metrics.Compensation(stepWalletRevert)
	return nil
}

func (i *Issuer) notify(ctx context.Context, req Request, amt Amount, logger *log.Entry) {
	if i.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.notifyTimeout)
	defer cancel()

	body := fmt.Sprintf("Вам начислено %s из общего пула.", common.FormatBalance(amt.Effective))
	if amt.Reduced {
		body += " В пуле мало монет, поэтому награда уменьшена."
	}
	n := notify.Notification{
		Category: notify.CategoryReward,
		Title:    req.Kind.Title(),
		Body:     body,
		Metadata: map[string]string{
			"reward_kind": string(req.Kind),
			"session":     req.SessionRef,
			"amount":      fmt.Sprint(amt.Effective),
		},
	}
	if err := i.notifier.Notify(nctx, req.UserID, n); err != nil {
		logger.WithError(err).Warn("Не удалось отправить уведомление о награде")
	}
}
