// Package rewards выдаёт ежедневные награды стримерам и зрителям из общего пула.
// eligibility.go решает, положена ли награда: проверки идут в фиксированном
// порядке и останавливаются на первом отказе.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/features/settings"
)

// Status: итог проверки или выдачи.
type Status string

const (
	StatusEligible            Status = "eligible"
	StatusDisabled            Status = "disabled"
	StatusAlreadyClaimed      Status = "already_claimed"
	StatusAccountTooNew       Status = "account_too_new"
	StatusSupplementaryFailed Status = "supplementary_failed"
	StatusLookupFailed        Status = "lookup_failed"
	StatusPoolSuspended       Status = "pool_suspended"
	StatusGranted             Status = "granted"
	StatusFailed              Status = "failed"
)

// ClaimLookup отвечает, получена ли награда сегодня.
type ClaimLookup interface {
	ClaimedToday(ctx context.Context, userID int64, kind common.RewardKind) (bool, error)
}

// AccountLookup отдаёт время создания аккаунта.
// Для неизвестного пользователя: ошибка с common.ErrUserNotFound.
type AccountLookup interface {
	AccountCreatedAt(ctx context.Context, userID int64) (time.Time, error)
}

// SupplementaryCheck: дополнительное условие вызывающего
// («эфир ещё идёт», «зритель пробыл минимальное время»).
// При отказе возвращает false и причину для пользователя.
type SupplementaryCheck func(ctx context.Context) (bool, string)

// Input: всё, что нужно для решения.
type Input struct {
	UserID   int64
	Kind     common.RewardKind
	Settings settings.RewardSettings
	Claims   ClaimLookup
	Accounts AccountLookup
	Check    SupplementaryCheck // Может быть nil
	// FailOpen: недоступный источник данных не блокирует награду.
	// Уникальность за день всё равно проверяется при записи награды.
	FailOpen bool
	Now      time.Time
}

// Eligibility: решение по награде.
type Eligibility struct {
	Status     Status
	Message    string
	AccountAge time.Duration // Заполняется для проверки возраста аккаунта
}

// Eligible сообщает, что награда положена.
func (e Eligibility) Eligible() bool {
	return e.Status == StatusEligible
}

// Evaluate принимает решение по награде:
//  1. тип награды включён;
//  2. награда ещё не получена сегодня;
//  3. для зрителя: аккаунт не моложе viewer_min_account_age;
//  4. дополнительная проверка вызывающего (если есть).
func Evaluate(ctx context.Context, in Input) Eligibility {
	fields := log.Fields{"user_id": in.UserID, "kind": in.Kind}

	if !in.Settings.Enabled(in.Kind) {
		return Eligibility{Status: StatusDisabled, Message: "Награда временно отключена"}
	}

	claimed, err := in.Claims.ClaimedToday(ctx, in.UserID, in.Kind)
	switch {
	case err != nil && !in.FailOpen:
		log.WithFields(fields).WithError(err).Warn("Не удалось проверить награду за сегодня")
		return Eligibility{Status: StatusLookupFailed, Message: "Не удалось проверить награду, попробуйте позже"}
	case err != nil:
		log.WithFields(fields).WithError(err).Warn("Не удалось проверить награду за сегодня, продолжаем (fail-open)")
	case claimed:
		return Eligibility{Status: StatusAlreadyClaimed, Message: "Награда за сегодня уже получена"}
	}

	if in.Kind == common.KindViewerDaily && in.Settings.ViewerMinAccountAge > 0 {
		if res, done := checkAccountAge(ctx, in, fields); done {
			return res
		}
	}

	if in.Check != nil {
		if ok, reason := in.Check(ctx); !ok {
			if reason == "" {
				reason = "Условие награды не выполнено"
			}
			return Eligibility{Status: StatusSupplementaryFailed, Message: reason}
		}
	}

	return Eligibility{Status: StatusEligible, Message: "Награда доступна"}
}

// checkAccountAge возвращает done=true, если проверка возраста завершила решение отказом.
func checkAccountAge(ctx context.Context, in Input, fields log.Fields) (Eligibility, bool) {
	minAge := in.Settings.ViewerMinAccountAge
	createdAt, err := in.Accounts.AccountCreatedAt(ctx, in.UserID)
	switch {
	case errors.Is(err, common.ErrUserNotFound):
		return tooNew(0, minAge), true
	case err != nil && !in.FailOpen:
		log.WithFields(fields).WithError(err).Warn("Не удалось получить возраст аккаунта")
		return Eligibility{Status: StatusLookupFailed, Message: "Не удалось проверить аккаунт, попробуйте позже"}, true
	case err != nil:
		log.WithFields(fields).WithError(err).Warn("Не удалось получить возраст аккаунта, продолжаем (fail-open)")
		return Eligibility{}, false
	}

	age := in.Now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	if age < minAge {
		return tooNew(age, minAge), true
	}
	return Eligibility{}, false
}

func tooNew(age, minAge time.Duration) Eligibility {
	msg := fmt.Sprintf("Аккаунт слишком новый: %s из %s", common.FormatAge(age), common.FormatAge(minAge))
	return Eligibility{Status: StatusAccountTooNew, Message: msg, AccountAge: age}
}
