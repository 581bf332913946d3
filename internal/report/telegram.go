package report

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hannlab/autotrader/internal/observ"
)

// Notifier pushes short operational updates to a human channel.
type Notifier interface {
	Notify(message string) error
}

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	token  string
	chatID string
	client *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Notify(message string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	form := url.Values{
		"chat_id":                  {t.chatID},
		"text":                     {message},
		"disable_web_page_preview": {"true"},
	}
	resp, err := t.client.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send: status %d", resp.StatusCode)
	}
	observ.Debug("telegram_sent", nil)
	return nil
}

// NopNotifier drops messages; used when no bot token is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(message string) error { return nil }
