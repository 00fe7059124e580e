package rewards

import "serotonyl.ru/stream-rewards/internal/features/settings"

// Amount: сумма награды с учётом состояния пула.
type Amount struct {
	Base      int64
	Effective int64
	Reduced   bool // Пул ниже порога, сумма уменьшена
	Suspended bool // Пул ниже порога, выдача приостановлена
}

// EffectiveAmount считает сумму награды:
//   - пул не ниже порога: базовая сумма;
//   - ниже порога, режим disable: 0, выдача приостановлена;
//   - ниже порога, режим reduce: max(1, base*(100-pct)/100).
//
// Уменьшенная награда никогда не бывает меньше 1 монеты.
func EffectiveAmount(base, poolBalance int64, s settings.RewardSettings) Amount {
	a := Amount{Base: base}
	if base <= 0 {
		return a
	}
	if poolBalance >= s.PoolThreshold {
		a.Effective = base
		return a
	}
	if s.FailSafeMode == settings.FailSafeDisable {
		a.Suspended = true
		return a
	}

	pct := int64(s.PoolReductionPct)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	reduced := base * (100 - pct) / 100
	if reduced < 1 {
		reduced = 1
	}
	a.Effective = reduced
	a.Reduced = pct > 0
	return a
}
