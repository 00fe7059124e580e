package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// Sender: часть Telegram Bot API, нужная для отправки личных сообщений.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramNotifier отправляет уведомления личным сообщением от бота.
// User ID в движке: это Telegram user ID, поэтому чат совпадает с пользователем.
type TelegramNotifier struct {
	sender Sender
}

// NewTelegramNotifier создаёт бота по токену.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram бота: %w", err)
	}
	return &TelegramNotifier{sender: bot}, nil
}

// NewTelegramNotifierWithSender создаёт уведомитель поверх готового клиента.
func NewTelegramNotifierWithSender(sender Sender) *TelegramNotifier {
	return &TelegramNotifier{sender: sender}
}

// Notify отправляет сообщение в личку пользователю.
func (t *TelegramNotifier) Notify(ctx context.Context, userID int64, n Notification) error {
	msg := tu.Message(tu.ID(userID), Format(n)).WithParseMode(telego.ModeHTML)
	if _, err := t.sender.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("не удалось отправить уведомление user_id=%d: %w", userID, err)
	}
	log.WithFields(log.Fields{
		"user_id":  userID,
		"category": n.Category,
	}).Debug("Уведомление отправлено в Telegram")
	return nil
}

// Format собирает HTML-текст сообщения: жирный заголовок и тело.
func Format(n Notification) string {
	if n.Title == "" {
		return html.EscapeString(n.Body)
	}
	return fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(n.Title), html.EscapeString(n.Body))
}
