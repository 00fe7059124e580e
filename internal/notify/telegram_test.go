package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*telego.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &telego.Message{}, nil
}

func TestTelegramNotifierSendsDM(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifierWithSender(sender)

	err := n.Notify(context.Background(), 42, Notification{
		Category: CategoryReward,
		Title:    "Ежедневная награда <стримера>",
		Body:     "+25 монет",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID.ID)
	assert.Equal(t, telego.ModeHTML, msg.ParseMode)
	assert.Equal(t, "<b>Ежедневная награда &lt;стримера&gt;</b>\n\n+25 монет", msg.Text)
}

func TestTelegramNotifierWrapsError(t *testing.T) {
	boom := errors.New("bot was blocked by the user")
	n := NewTelegramNotifierWithSender(&fakeSender{err: boom})

	err := n.Notify(context.Background(), 1, Notification{Body: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestLogNotifierNeverFails(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), 1, Notification{Title: "t", Body: "b"}))
}
