// Package economy ведёт кошельки пользователей: сюда зачисляются монеты
// ежедневных наград и отсюда же они возвращаются при откате выдачи.
// models.go описывает структуры для балансов и транзакций.
package economy

import "time"

// Balance представляет баланс пользователя.
// Запись создаётся при первом начислении.
type Balance struct {
	UserID      int64     `json:"user_id"`
	Balance     int64     `json:"balance"`
	TotalEarned int64     `json:"total_earned"` // Сколько всего начислено
	TotalSpent  int64     `json:"total_spent"`  // Сколько всего списано (в т.ч. откаты)
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Transaction представляет одну операцию с монетами.
type Transaction struct {
	ID              int64     `json:"id"`
	FromUserID      *int64    `json:"from_user_id,omitempty"` // nil для начислений из пула
	ToUserID        *int64    `json:"to_user_id,omitempty"`   // nil для откатов в пул
	Amount          int64     `json:"amount"`                 // Всегда положительная
	TransactionType string    `json:"transaction_type"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// Типы транзакций
const (
	TxTypeDailyReward  = "daily_reward"  // Ежедневная награда из пула
	TxTypeRewardRevert = "reward_revert" // Откат награды, которую не удалось записать
)
