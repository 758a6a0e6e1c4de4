// Package notify pushes the run report to every configured channel. Channels
// are independent: one failing webhook never blocks another, and no failure
// here is ever fatal to the run.
package notify

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// pushTimeout bounds one channel delivery.
const pushTimeout = 30 * time.Second

// Channel delivers one message to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, client *http.Client, title, body string) error
}

// Notifier fans a message out to all configured channels.
type Notifier struct {
	channels []Channel
	client   *http.Client
	log      zerolog.Logger
}

// New builds a notifier over the given channels.
func New(log zerolog.Logger, channels ...Channel) *Notifier {
	return &Notifier{
		channels: channels,
		client:   &http.Client{Timeout: pushTimeout},
		log:      log,
	}
}

// FromEnv assembles the notifier from environment variables; only channels
// with complete configuration are attached. The variable names match the
// original deployment so existing CI secrets keep working.
func FromEnv(log zerolog.Logger) *Notifier {
	var channels []Channel

	if user, pass, to := os.Getenv("EMAIL_USER"), os.Getenv("EMAIL_PASS"), os.Getenv("EMAIL_TO"); user != "" && pass != "" && to != "" {
		port := 465
		if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil && p > 0 {
			port = p
		}
		host := os.Getenv("EMAIL_SMTP_SERVER")
		if host == "" {
			host = "smtp.qq.com"
		}
		channels = append(channels, &Email{User: user, Pass: pass, To: to, Host: host, Port: port})
	}
	if token := os.Getenv("PUSHPLUS_TOKEN"); token != "" {
		channels = append(channels, &PushPlus{Token: token})
	}
	if key := os.Getenv("SERVERPUSHKEY"); key != "" {
		channels = append(channels, &ServerChan{Key: key})
	}
	if hook := os.Getenv("DINGDING_WEBHOOK"); hook != "" {
		channels = append(channels, &DingTalk{Webhook: hook})
	}
	if hook := os.Getenv("FEISHU_WEBHOOK"); hook != "" {
		channels = append(channels, &Feishu{Webhook: hook})
	}
	if hook := os.Getenv("WEIXIN_WEBHOOK"); hook != "" {
		channels = append(channels, &WeCom{Webhook: hook})
	}
	if url, token := os.Getenv("GOTIFY_URL"), os.Getenv("GOTIFY_TOKEN"); url != "" && token != "" {
		priority := 5
		if p, err := strconv.Atoi(os.Getenv("GOTIFY_PRIORITY")); err == nil {
			priority = p
		}
		channels = append(channels, &Gotify{URL: url, Token: token, Priority: priority})
	}
	if token, chat := os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID"); token != "" && chat != "" {
		channels = append(channels, &Telegram{BotToken: token, ChatID: chat})
	}

	return New(log, channels...)
}

// Configured reports whether any channel is attached.
func (n *Notifier) Configured() bool { return len(n.channels) > 0 }

// Push delivers the message to every channel and returns the per-channel
// success map. Failures are logged and recorded, never propagated.
func (n *Notifier) Push(ctx context.Context, title, body string) map[string]bool {
	outcome := make(map[string]bool, len(n.channels))
	for _, ch := range n.channels {
		err := ch.Send(ctx, n.client, title, body)
		outcome[ch.Name()] = err == nil
		if err != nil {
			n.log.Warn().Str("channel", ch.Name()).Err(err).Msg("notification delivery failed")
		} else {
			n.log.Info().Str("channel", ch.Name()).Msg("notification delivered")
		}
	}
	return outcome
}
