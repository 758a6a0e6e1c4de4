package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestGotifySendsHeaderAuthAndClampedPriority(t *testing.T) {
	var gotKey string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message" {
			t.Errorf("path = %q, want /message", r.URL.Path)
		}
		gotKey = r.Header.Get("X-Gotify-Key")
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	g := &Gotify{URL: srv.URL + "/", Token: "tok", Priority: 42}
	if err := g.Send(context.Background(), srv.Client(), "title", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotKey != "tok" {
		t.Fatalf("X-Gotify-Key = %q, want %q", gotKey, "tok")
	}
	if payload["priority"] != float64(10) {
		t.Fatalf("priority = %v, want clamped 10", payload["priority"])
	}
}

func TestEmailSendHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &Email{User: "u@example.com", Pass: "p", To: "t@example.com", Host: "smtp.example.com", Port: 465}
	if err := e.Send(ctx, nil, "title", "body"); err == nil {
		t.Fatal("expected a cancelled context to abort the dial")
	}
}

func TestClampPriority(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {5, 5}, {10, 10}, {11, 10},
	}
	for _, tt := range tests {
		if got := clampPriority(tt.in); got != tt.want {
			t.Fatalf("clampPriority(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPushPlusPayload(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	p := &PushPlus{Token: "tok", Endpoint: srv.URL}
	if err := p.Send(context.Background(), srv.Client(), "hello", "world"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload["token"] != "tok" || payload["title"] != "hello" || payload["content"] != "world" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestPushReportsPerChannelOutcome(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer okSrv.Close()
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badSrv.Close()

	n := New(zerolog.Nop(),
		&DingTalk{Webhook: okSrv.URL},
		&Feishu{Webhook: badSrv.URL},
	)

	outcome := n.Push(context.Background(), "t", "b")
	if !outcome["dingtalk"] {
		t.Fatal("dingtalk should have succeeded")
	}
	if outcome["feishu"] {
		t.Fatal("feishu should have failed")
	}
}

func TestFromEnvOnlyAttachesCompleteChannels(t *testing.T) {
	for _, key := range []string{"EMAIL_USER", "EMAIL_PASS", "EMAIL_TO", "SERVERPUSHKEY", "DINGDING_WEBHOOK", "FEISHU_WEBHOOK", "WEIXIN_WEBHOOK"} {
		t.Setenv(key, "")
	}
	t.Setenv("PUSHPLUS_TOKEN", "tok")
	t.Setenv("GOTIFY_URL", "http://gotify.local")
	t.Setenv("GOTIFY_TOKEN", "") // incomplete pair
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	n := FromEnv(zerolog.Nop())
	if !n.Configured() {
		t.Fatal("expected channels")
	}
	if len(n.channels) != 2 {
		names := make([]string, 0, len(n.channels))
		for _, c := range n.channels {
			names = append(names, c.Name())
		}
		t.Fatalf("channels = %v, want pushplus and telegram only", names)
	}
}
