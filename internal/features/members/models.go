// Package members хранит аккаунты пользователей, которых видел движок наград.
// Для наград важно одно поле: когда аккаунт появился (JoinedAt), от него
// считается возраст аккаунта для награды зрителя.
package members

import "time"

// Member: аккаунт пользователя.
type Member struct {
	ID        int64     `json:"-"`
	UserID    int64     `json:"user_id"`              // Telegram user ID (уникальный)
	Username  string    `json:"username,omitempty"`   // @username (может быть пустым)
	FirstName string    `json:"first_name,omitempty"` // Имя пользователя
	LastName  string    `json:"last_name,omitempty"`
	IsBanned  bool      `json:"is_banned"`
	JoinedAt  time.Time `json:"joined_at"` // Когда аккаунт создан / впервые замечен
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username: возвращает его, иначе, имя + фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	return name
}
