// Package rewards: service.go связывает события эфира с отложенной выдачей.
// Начало эфира или вход зрителя взводит таймер на min_duration; по таймеру
// повторно проверяется, что участник ещё в эфире, и вызывается Issue.
package rewards

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/jobs"
)

// LivenessChecker отвечает, идёт ли эфир и смотрит ли его зритель.
type LivenessChecker interface {
	IsBroadcastLive(ctx context.Context, sessionID string) (bool, error)
	IsViewerPresent(ctx context.Context, sessionID string, userID int64) (bool, error)
}

// Scheduler: планировщик отложенных наград.
type Scheduler interface {
	Arm(key jobs.Key, kind string, delay time.Duration, fire jobs.FireFunc) (jobs.PendingCommit, error)
	Cancel(key jobs.Key) bool
	Pending(key jobs.Key) (jobs.PendingCommit, bool)
}

// ArmResult: итог взведения награды.
type ArmResult struct {
	Armed   bool      `json:"armed"`
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	FiresAt time.Time `json:"fires_at,omitempty"`
}

// StatusView: состояние награды для пользователя.
type StatusView struct {
	Kind           common.RewardKind `json:"reward_kind"`
	Eligible       bool              `json:"eligible"`
	AlreadyClaimed bool              `json:"already_claimed"`
	Status         Status            `json:"status"`
	Message        string            `json:"message"`
}

// Service: точка входа движка наград.
type Service struct {
	issuer          *Issuer
	scheduler       Scheduler
	liveness        LivenessChecker
	livenessTimeout time.Duration
	now             func() time.Time
}

// NewService создаёт сервис наград.
func NewService(issuer *Issuer, scheduler Scheduler, liveness LivenessChecker, livenessTimeout time.Duration) *Service {
	if livenessTimeout <= 0 {
		livenessTimeout = 3 * time.Second
	}
	return &Service{
		issuer:          issuer,
		scheduler:       scheduler,
		liveness:        liveness,
		livenessTimeout: livenessTimeout,
		now:             time.Now,
	}
}

// ArmBroadcasterReward взводит награду стримеру при начале эфира.
func (s *Service) ArmBroadcasterReward(ctx context.Context, userID int64, sessionID string) (ArmResult, error) {
	return s.arm(ctx, userID, sessionID, common.KindBroadcasterDaily)
}

// ArmViewerReward взводит награду зрителю при входе в эфир.
func (s *Service) ArmViewerReward(ctx context.Context, userID int64, sessionID string) (ArmResult, error) {
	return s.arm(ctx, userID, sessionID, common.KindViewerDaily)
}

// CancelPending отменяет взведённую награду (участник ушёл раньше срока).
// Отмена уже сработавшей или отменённой награды ничего не делает.
func (s *Service) CancelPending(sessionID string, userID int64) bool {
	cancelled := s.scheduler.Cancel(jobs.Key{SessionID: sessionID, ParticipantID: userID})
	if cancelled {
		log.WithFields(log.Fields{
			"session": sessionID,
			"user_id": userID,
		}).Info("Отложенная награда отменена")
	}
	return cancelled
}

// ForceIssue выдаёт награду сразу, минуя таймер. Все проверки и
// финансовые шаги те же, что и у обычной выдачи.
func (s *Service) ForceIssue(ctx context.Context, userID int64, kind common.RewardKind, sessionID, actor string) (Result, error) {
	if actor == "" {
		actor = "admin"
	}
	return s.issuer.Issue(ctx, Request{
		UserID:     userID,
		Kind:       kind,
		SessionRef: sessionID,
		Actor:      actor,
	})
}

// Status возвращает, положена ли пользователю награда сейчас.
func (s *Service) Status(ctx context.Context, userID int64, kind common.RewardKind) (StatusView, error) {
	if !kind.Valid() {
		return StatusView{}, common.ErrUnknownRewardKind
	}
	elig := s.issuer.Evaluate(ctx, userID, kind, nil)
	return StatusView{
		Kind:           kind,
		Eligible:       elig.Eligible(),
		AlreadyClaimed: elig.Status == StatusAlreadyClaimed,
		Status:         elig.Status,
		Message:        elig.Message,
	}, nil
}

func (s *Service) arm(ctx context.Context, userID int64, sessionID string, kind common.RewardKind) (ArmResult, error) {
	logger := log.WithFields(log.Fields{
		"user_id": userID,
		"session": sessionID,
		"kind":    kind,
	})

	// Таймер не взводится, если награда заведомо не положена
	elig := s.issuer.Evaluate(ctx, userID, kind, nil)
	if !elig.Eligible() {
		logger.WithField("status", elig.Status).Debug("Награда не взведена")
		return ArmResult{Status: elig.Status, Message: elig.Message}, nil
	}

	delay := s.issuer.settings.Get(ctx).MinDuration(kind)
	key := jobs.Key{SessionID: sessionID, ParticipantID: userID}
	armedAt := s.now()

	pc, err := s.scheduler.Arm(key, string(kind), delay, func(fireCtx context.Context) {
		s.fire(fireCtx, key, kind, armedAt, delay)
	})
	if err != nil {
		return ArmResult{Status: StatusFailed, Message: "Не удалось взвести награду"}, err
	}

	logger.WithField("fires_at", pc.FiresAt).Info("Отложенная награда взведена")
	msg := fmt.Sprintf("Награда будет начислена через %s, если вы останетесь в эфире", delay)
	return ArmResult{Armed: true, Status: StatusEligible, Message: msg, FiresAt: pc.FiresAt}, nil
}

// fire выполняется по таймеру: повторная проверка присутствия, затем выдача.
func (s *Service) fire(ctx context.Context, key jobs.Key, kind common.RewardKind, armedAt time.Time, minDuration time.Duration) {
	logger := log.WithFields(log.Fields{
		"user_id": key.ParticipantID,
		"session": key.SessionID,
		"kind":    kind,
	})

	live, err := s.checkLiveness(ctx, key, kind)
	if err != nil {
		logger.WithError(err).Warn("Не удалось проверить присутствие, награда не выдана")
		return
	}
	if !live {
		logger.Info("Участник уже не в эфире, награда не выдана")
		return
	}

	// После проверки присутствия отмена уже не останавливает выдачу
	res, err := s.issuer.Issue(ctx, Request{
		UserID:     key.ParticipantID,
		Kind:       kind,
		SessionRef: key.SessionID,
		Actor:      "scheduler",
		Check:      s.stayedCheck(armedAt, minDuration),
	})
	if err != nil {
		logger.WithError(err).Error("Сбой выдачи отложенной награды")
		return
	}
	logger.WithFields(log.Fields{
		"granted": res.Granted,
		"amount":  res.Amount,
		"status":  res.Status,
	}).Info("Отложенная награда обработана")
}

func (s *Service) checkLiveness(ctx context.Context, key jobs.Key, kind common.RewardKind) (bool, error) {
	lctx, cancel := context.WithTimeout(ctx, s.livenessTimeout)
	defer cancel()

	if kind == common.KindBroadcasterDaily {
		return s.liveness.IsBroadcastLive(lctx, key.SessionID)
	}
	return s.liveness.IsViewerPresent(lctx, key.SessionID, key.ParticipantID)
}

// stayedCheck проверяет, что с момента взведения прошло не меньше минимального окна.
func (s *Service) stayedCheck(armedAt time.Time, minDuration time.Duration) SupplementaryCheck {
	return func(context.Context) (bool, string) {
		stayed := s.now().Sub(armedAt)
		if stayed < minDuration {
			return false, fmt.Sprintf("Нужно пробыть в эфире %s, прошло %s", minDuration, stayed.Truncate(time.Second))
		}
		return true, ""
	}
}
