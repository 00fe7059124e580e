// Package claims хранит факты получения ежедневных наград.
// Уникальный индекс (user_id, reward_kind, claim_date): единственная
// гарантия «не больше одной награды в день»: проверка в коде до вставки
// не защищает от гонки, вставка: защищает.
package claims

import (
	"time"

	"serotonyl.ru/stream-rewards/internal/common"
)

// Claim: одна выданная награда.
type Claim struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"user_id"`
	Kind       common.RewardKind `json:"reward_kind"`
	Date       time.Time         `json:"date"` // Полночь UTC
	SessionRef string            `json:"session_ref"`
	Amount     int64             `json:"amount"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Filter: параметры выборки журнала наград.
type Filter struct {
	UserID *int64
	Kind   common.RewardKind
	From   *time.Time // Включительно, по claim_date
	To     *time.Time // Включительно, по claim_date
	Limit  int
	Offset int
}

// DaySummary: итоги выдачи за день по типу награды.
type DaySummary struct {
	Kind   common.RewardKind `json:"reward_kind"`
	Count  int64             `json:"count"`
	Amount int64             `json:"amount"`
}
