// Package settings хранит настраиваемые параметры ежедневных наград.
// models.go описывает каноническую схему настроек, значения по умолчанию
// и правила валидации каждого ключа.
package settings

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"serotonyl.ru/stream-rewards/internal/common"
)

// FailSafeMode: что делать, когда баланс пула ниже порога.
type FailSafeMode string

const (
	FailSafeDisable FailSafeMode = "disable" // Приостановить выдачу наград
	FailSafeReduce  FailSafeMode = "reduce"  // Уменьшить награды на pool_reduction_pct
)

// Ключи таблицы reward_settings
const (
	KeyBroadcasterEnabled     = "broadcaster_enabled"
	KeyBroadcasterAmount      = "broadcaster_amount"
	KeyBroadcasterMinDuration = "broadcaster_min_duration"
	KeyViewerEnabled          = "viewer_enabled"
	KeyViewerAmount           = "viewer_amount"
	KeyViewerMinStay          = "viewer_min_stay"
	KeyViewerMinAccountAge    = "viewer_min_account_age"
	KeyPoolThreshold          = "pool_threshold"
	KeyPoolReductionPct       = "pool_reduction_pct"
	KeyFailSafeMode           = "fail_safe_mode"
)

// Границы допустимых значений
const (
	MinAmount        = 1
	MaxAmount        = 1_000_000
	MinWindow        = time.Second
	MaxWindow        = 24 * time.Hour
	MaxMinAccountAge = 365 * 24 * time.Hour
	MaxReductionPct  = 100
)

// RewardSettings: текущая конфигурация наград.
// Одна схема с явными значениями по умолчанию, без запасных источников.
type RewardSettings struct {
	BroadcasterEnabled     bool          `json:"broadcaster_enabled"`
	BroadcasterAmount      int64         `json:"broadcaster_amount"`
	BroadcasterMinDuration time.Duration `json:"broadcaster_min_duration"`

	ViewerEnabled       bool          `json:"viewer_enabled"`
	ViewerAmount        int64         `json:"viewer_amount"`
	ViewerMinStay       time.Duration `json:"viewer_min_stay"`
	ViewerMinAccountAge time.Duration `json:"viewer_min_account_age"`

	PoolThreshold    int64        `json:"pool_threshold"`     // Ниже этого баланса включается fail-safe
	PoolReductionPct int          `json:"pool_reduction_pct"` // 0..100
	FailSafeMode     FailSafeMode `json:"fail_safe_mode"`
}

// Defaults возвращает настройки по умолчанию.
func Defaults() RewardSettings {
	return RewardSettings{
		BroadcasterEnabled:     true,
		BroadcasterAmount:      25,
		BroadcasterMinDuration: 60 * time.Second,
		ViewerEnabled:          true,
		ViewerAmount:           10,
		ViewerMinStay:          30 * time.Second,
		ViewerMinAccountAge:    24 * time.Hour,
		PoolThreshold:          10_000,
		PoolReductionPct:       50,
		FailSafeMode:           FailSafeReduce,
	}
}

// Enabled сообщает, включён ли тип награды.
func (s RewardSettings) Enabled(kind common.RewardKind) bool {
	switch kind {
	case common.KindBroadcasterDaily:
		return s.BroadcasterEnabled
	case common.KindViewerDaily:
		return s.ViewerEnabled
	}
	return false
}

// Amount возвращает базовую сумму награды.
func (s RewardSettings) Amount(kind common.RewardKind) int64 {
	switch kind {
	case common.KindBroadcasterDaily:
		return s.BroadcasterAmount
	case common.KindViewerDaily:
		return s.ViewerAmount
	}
	return 0
}

// MinDuration возвращает окно, после которого награда фиксируется:
// длительность эфира для стримера и время просмотра для зрителя.
func (s RewardSettings) MinDuration(kind common.RewardKind) time.Duration {
	switch kind {
	case common.KindBroadcasterDaily:
		return s.BroadcasterMinDuration
	case common.KindViewerDaily:
		return s.ViewerMinStay
	}
	return 0
}

// Encode превращает настройки в строки для таблицы reward_settings.
func (s RewardSettings) Encode() map[string]string {
	return map[string]string{
		KeyBroadcasterEnabled:     strconv.FormatBool(s.BroadcasterEnabled),
		KeyBroadcasterAmount:      strconv.FormatInt(s.BroadcasterAmount, 10),
		KeyBroadcasterMinDuration: s.BroadcasterMinDuration.String(),
		KeyViewerEnabled:          strconv.FormatBool(s.ViewerEnabled),
		KeyViewerAmount:           strconv.FormatInt(s.ViewerAmount, 10),
		KeyViewerMinStay:          s.ViewerMinStay.String(),
		KeyViewerMinAccountAge:    s.ViewerMinAccountAge.String(),
		KeyPoolThreshold:          strconv.FormatInt(s.PoolThreshold, 10),
		KeyPoolReductionPct:       strconv.Itoa(s.PoolReductionPct),
		KeyFailSafeMode:           string(s.FailSafeMode),
	}
}

// Keys возвращает все известные ключи в алфавитном порядке.
func Keys() []string {
	encoded := Defaults().Encode()
	keys := make([]string, 0, len(encoded))
	for k := range encoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply применяет одно значение к настройкам с проверкой границ.
// Сами настройки не меняются, если значение некорректно.
func (s *RewardSettings) Apply(key, value string) error {
	key = normalizeKey(key)
	value = strings.TrimSpace(value)

	switch key {
	case KeyBroadcasterEnabled:
		v, err := parseBool(value)
		if err != nil {
			return invalid(key, value, "ожидается true/false")
		}
		s.BroadcasterEnabled = v
	case KeyViewerEnabled:
		v, err := parseBool(value)
		if err != nil {
			return invalid(key, value, "ожидается true/false")
		}
		s.ViewerEnabled = v
	case KeyBroadcasterAmount, KeyViewerAmount:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil || v < MinAmount || v > MaxAmount {
			return invalid(key, value, fmt.Sprintf("сумма от %d до %d", MinAmount, MaxAmount))
		}
		if key == KeyBroadcasterAmount {
			s.BroadcasterAmount = v
		} else {
			s.ViewerAmount = v
		}
	case KeyBroadcasterMinDuration, KeyViewerMinStay:
		d, err := parseDuration(value)
		if err != nil || d < MinWindow || d > MaxWindow {
			return invalid(key, value, "длительность от 1s до 24h")
		}
		if key == KeyBroadcasterMinDuration {
			s.BroadcasterMinDuration = d
		} else {
			s.ViewerMinStay = d
		}
	case KeyViewerMinAccountAge:
		d, err := parseDuration(value)
		if err != nil || d < 0 || d > MaxMinAccountAge {
			return invalid(key, value, "возраст аккаунта от 0 до 8760h")
		}
		s.ViewerMinAccountAge = d
	case KeyPoolThreshold:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil || v < 0 {
			return invalid(key, value, "порог не может быть отрицательным")
		}
		s.PoolThreshold = v
	case KeyPoolReductionPct:
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 || v > MaxReductionPct {
			return invalid(key, value, "процент от 0 до 100")
		}
		s.PoolReductionPct = v
	case KeyFailSafeMode:
		mode := FailSafeMode(strings.ToLower(value))
		if mode != FailSafeDisable && mode != FailSafeReduce {
			return invalid(key, value, "disable или reduce")
		}
		s.FailSafeMode = mode
	default:
		return fmt.Errorf("%w: %q", common.ErrUnknownSetting, key)
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func invalid(key, value, hint string) error {
	return fmt.Errorf("%w: %s=%q (%s)", common.ErrInvalidSetting, key, value, hint)
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// parseDuration понимает "90s", "1h30m" и голое число секунд ("60").
func parseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs > math.MaxInt64/int64(time.Second) || secs < math.MinInt64/int64(time.Second) {
			return 0, strconv.ErrRange
		}
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}
