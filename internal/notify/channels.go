package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"time"
)

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Email sends over implicit-TLS SMTP (port 465 style).
type Email struct {
	User string
	Pass string
	To   string
	Host string
	Port int
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, _ *http.Client, title, body string) error {
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: pushTimeout},
		Config:    &tls.Config{ServerName: e.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	// One deadline for the whole SMTP exchange, so a stalled server cannot
	// hang the notification fan-out.
	conn.SetDeadline(time.Now().Add(pushTimeout))
	client, err := smtp.NewClient(conn, e.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if err := client.Auth(smtp.PlainAuth("", e.User, e.Pass, e.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(e.User); err != nil {
		return err
	}
	if err := client.Rcpt(e.To); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + e.User,
		"To: " + e.To,
		"Subject: " + title,
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// PushPlus posts to the pushplus.plus aggregation service.
type PushPlus struct {
	Token string
	// Endpoint overrides the default in tests.
	Endpoint string
}

func (p *PushPlus) Name() string { return "pushplus" }

func (p *PushPlus) Send(ctx context.Context, client *http.Client, title, body string) error {
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = "https://www.pushplus.plus/send"
	}
	return postJSON(ctx, client, endpoint, map[string]string{
		"token":   p.Token,
		"title":   title,
		"content": body,
	}, nil)
}

// ServerChan posts to the sctapi.ftqq.com push service.
type ServerChan struct {
	Key      string
	Endpoint string
}

func (s *ServerChan) Name() string { return "serverchan" }

func (s *ServerChan) Send(ctx context.Context, client *http.Client, title, body string) error {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = "https://sctapi.ftqq.com/" + s.Key + ".send"
	}
	form := url.Values{"title": {title}, "desp": {body}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// DingTalk posts a text message to a DingTalk group robot webhook.
type DingTalk struct {
	Webhook string
}

func (d *DingTalk) Name() string { return "dingtalk" }

func (d *DingTalk) Send(ctx context.Context, client *http.Client, title, body string) error {
	return postJSON(ctx, client, d.Webhook, map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": title + "\n" + body},
	}, nil)
}

// Feishu posts a text message to a Feishu group robot webhook.
type Feishu struct {
	Webhook string
}

func (f *Feishu) Name() string { return "feishu" }

func (f *Feishu) Send(ctx context.Context, client *http.Client, title, body string) error {
	return postJSON(ctx, client, f.Webhook, map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": title + "\n" + body},
	}, nil)
}

// WeCom posts a text message to a WeCom group robot webhook.
type WeCom struct {
	Webhook string
}

func (w *WeCom) Name() string { return "wecom" }

func (w *WeCom) Send(ctx context.Context, client *http.Client, title, body string) error {
	return postJSON(ctx, client, w.Webhook, map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": title + "\n" + body},
	}, nil)
}

// Gotify posts to a self-hosted Gotify server using header auth.
type Gotify struct {
	URL      string
	Token    string
	Priority int
}

func (g *Gotify) Name() string { return "gotify" }

func (g *Gotify) Send(ctx context.Context, client *http.Client, title, body string) error {
	return postJSON(ctx, client, strings.TrimRight(g.URL, "/")+"/message", map[string]any{
		"title":    title,
		"message":  body,
		"priority": clampPriority(g.Priority),
	}, map[string]string{"X-Gotify-Key": g.Token})
}

// clampPriority keeps the Gotify priority inside its valid 1..10 range.
func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// Telegram sends via the Bot API.
type Telegram struct {
	BotToken string
	ChatID   string
	Endpoint string
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, client *http.Client, title, body string) error {
	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = "https://api.telegram.org/bot" + t.BotToken + "/sendMessage"
	}
	return postJSON(ctx, client, endpoint, map[string]string{
		"chat_id": t.ChatID,
		"text":    title + "\n\n" + body,
	}, nil)
}
