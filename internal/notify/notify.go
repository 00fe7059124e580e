// Package notify доставляет пользователям уведомления о наградах.
// Для движка наград доставка всегда «выстрелил и забыл»: ошибка здесь
// логируется вызывающим и никогда не откатывает выдачу.
package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Категории уведомлений
const (
	CategoryReward = "reward"
)

// Notification: одно уведомление пользователю.
type Notification struct {
	Category string
	Title    string
	Body     string
	Metadata map[string]string
}

// Notifier отправляет уведомление пользователю.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n Notification) error
}

// LogNotifier только пишет уведомления в лог. Используется, когда токен бота не задан.
type LogNotifier struct{}

// Notify пишет уведомление в лог.
func (LogNotifier) Notify(_ context.Context, userID int64, n Notification) error {
	log.WithFields(log.Fields{
		"user_id":  userID,
		"category": n.Category,
		"metadata": n.Metadata,
	}).Infof("Уведомление: %s. %s", n.Title, n.Body)
	return nil
}
