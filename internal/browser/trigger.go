// Package browser defines the contract with the external browser-automation
// collaborator. The automation engine itself (stealth profiles, OAuth
// clicking, form filling) lives outside this repository; the core only
// consumes its outcome.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the uniform outcome of a browser-driven signin attempt.
// Implementations must not panic or return Go errors for operational
// failures; everything surfaces through Success and Error.
type Result struct {
	Success       bool     `json:"success"`
	BalanceBefore *float64 `json:"balance_before,omitempty"`
	BalanceAfter  *float64 `json:"balance_after,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// OAuthRequest asks for a full OAuth re-authentication at the provider,
// followed by an account page visit that triggers the reward.
type OAuthRequest struct {
	AccountName   string `json:"account_name"`
	Domain        string `json:"domain"`
	LoginURL      string `json:"login_url"`
	OAuthProvider string `json:"oauth_provider"`
	AuthorizeURL  string `json:"authorize_url"`
	SessionCookie string `json:"session_cookie,omitempty"`
}

// CredentialRequest asks for a username/password browser login followed by
// an account page visit.
type CredentialRequest struct {
	AccountName string `json:"account_name"`
	Domain      string `json:"domain"`
	LoginURL    string `json:"login_url"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// Trigger is the collaborator interface. Both calls are long-running (tens
// of seconds, a whole browser session).
type Trigger interface {
	ViaOAuth(ctx context.Context, req OAuthRequest) Result
	ViaCredentials(ctx context.Context, req CredentialRequest) Result
}

// sidecarTimeout bounds one full browser session at the sidecar.
const sidecarTimeout = 180 * time.Second

// Sidecar implements Trigger against a local automation sidecar exposing
// POST /signin/oauth and POST /signin/credentials.
type Sidecar struct {
	baseURL    string
	httpClient *http.Client
}

// NewSidecar points the trigger at the sidecar base URL, e.g.
// http://127.0.0.1:8377.
func NewSidecar(baseURL string) *Sidecar {
	return &Sidecar{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: sidecarTimeout},
	}
}

// ViaOAuth runs the OAuth re-authentication flow at the sidecar.
func (s *Sidecar) ViaOAuth(ctx context.Context, req OAuthRequest) Result {
	return s.post(ctx, "/signin/oauth", req)
}

// ViaCredentials runs the credential login flow at the sidecar.
func (s *Sidecar) ViaCredentials(ctx context.Context, req CredentialRequest) Result {
	return s.post(ctx, "/signin/credentials", req)
}

func (s *Sidecar) post(ctx context.Context, path string, payload any) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal sidecar request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("build sidecar request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Result{Error: fmt.Sprintf("sidecar unreachable: %v", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Error: fmt.Sprintf("read sidecar response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Error: fmt.Sprintf("sidecar returned HTTP %d", resp.StatusCode)}
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{Error: fmt.Sprintf("decode sidecar response: %v", err)}
	}
	return result
}

// Unavailable is the Trigger used when no sidecar is configured.
type Unavailable struct{}

// ViaOAuth always reports the missing configuration.
func (Unavailable) ViaOAuth(context.Context, OAuthRequest) Result {
	return Result{Error: "browser automation not configured (set CHECKIN_BROWSER_URL)"}
}

// ViaCredentials always reports the missing configuration.
func (Unavailable) ViaCredentials(context.Context, CredentialRequest) Result {
	return Result{Error: "browser automation not configured (set CHECKIN_BROWSER_URL)"}
}
