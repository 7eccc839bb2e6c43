// Package notify is the side channel the conversation view uses to signal
// activity from other authors. Delivery mechanics (push, sound, badge) are
// the caller's concern; this package only carries title/body to a sink.
package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"anonchat/pkg/logger"
)

// Notifier receives local-viewer notifications.
type Notifier interface {
	Notify(title, body string)
}

// Funcs adapts a plain function to Notifier. Handy in tests.
type Funcs func(title, body string)

func (f Funcs) Notify(title, body string) { f(title, body) }

// Noop discards notifications.
type Noop struct{}

func (Noop) Notify(string, string) {}

// Telegram posts notifications to a Telegram chat via the Bot API.
// Failures are logged and dropped; a missed notification never breaks the
// conversation view.
type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client
}

// NewTelegram builds a Telegram notifier with a short default timeout.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (t *Telegram) Notify(title, body string) {
	if t.BotToken == "" || t.ChatID == "" {
		return
	}
	text := title
	if body != "" {
		text = title + "\n" + body
	}
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)
	resp, err := t.Client.PostForm(endpoint, url.Values{
		"chat_id": {t.ChatID},
		"text":    {text},
	})
	if err != nil {
		logger.Warn("telegram_notify_failed", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Warn("telegram_notify_status", "status", resp.StatusCode)
	}
}
