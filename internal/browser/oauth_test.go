package browser

import (
	"strings"
	"testing"
)

func TestAuthorizeURL(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantHost string
		wantErr  bool
	}{
		{name: "github", provider: "github", wantHost: "github.com"},
		{name: "google", provider: "Google", wantHost: "accounts.google.com"},
		{name: "linuxdo", provider: "linuxdo", wantHost: "connect.linux.do"},
		{name: "unknown", provider: "myspace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := AuthorizeURL(tt.provider, "https://anyrouter.top/oauth/callback", "state-1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("AuthorizeURL: %v", err)
			}
			if !strings.Contains(url, tt.wantHost) {
				t.Fatalf("authorize URL %q missing host %q", url, tt.wantHost)
			}
			if !strings.Contains(url, "state=state-1") {
				t.Fatalf("authorize URL %q missing state", url)
			}
		})
	}
}
