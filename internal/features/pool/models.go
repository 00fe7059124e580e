// Package pool ведёт общий пул монет, из которого оплачиваются ежедневные награды.
// Баланс пула: одна строка reward_pool, каждое его изменение дописывается
// в журнал pool_ledger. Журнал никогда не переписывается: откат списания
// записывается как обычное пополнение с пометкой rollback.
package pool

import "time"

// Причины движений пула
const (
	ReasonGenesis  = "genesis"     // Начальный баланс при первом запуске
	ReasonReward   = "reward"      // Выплата ежедневной награды
	ReasonRollback = "rollback"    // Компенсация неудавшейся выплаты
	ReasonTopUp    = "admin_topup" // Пополнение администратором
)

// Meta описывает, кто и зачем двигает пул. Попадает в журнал для аудита.
type Meta struct {
	Reason     string
	ActorRef   string // "system", "admin:<login>", "issuer"
	UserID     *int64 // Получатель награды, если есть
	RewardKind string
	SessionRef string
	Rollback   bool
}

// LedgerEntry: одна запись журнала пула.
type LedgerEntry struct {
	ID               int64     `json:"id"`
	Delta            int64     `json:"delta"` // >0 пополнение, <0 списание
	Reason           string    `json:"reason"`
	ActorRef         string    `json:"actor_ref"`
	UserID           *int64    `json:"user_id,omitempty"`
	RewardKind       string    `json:"reward_kind,omitempty"`
	SessionRef       string    `json:"session_ref,omitempty"`
	Rollback         bool      `json:"rollback"`
	ResultingBalance int64     `json:"resulting_balance"`
	CreatedAt        time.Time `json:"created_at"`
}

// Verification: результат сверки журнала с текущим балансом.
type Verification struct {
	Balance         int64 `json:"balance"`          // Баланс в reward_pool
	ReplayedBalance int64 `json:"replayed_balance"` // Сумма всех delta из журнала
	Entries         int   `json:"entries"`
	// ID первой записи, где resulting_balance не совпал с накопленной суммой
	FirstMismatchID int64 `json:"first_mismatch_id,omitempty"`
	NegativeEntries int   `json:"negative_entries"`
	Consistent      bool  `json:"consistent"`
}

// UserIDRef: удобный конструктор для Meta.UserID.
func UserIDRef(id int64) *int64 {
	return &id
}
