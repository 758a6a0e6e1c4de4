package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pysugar/relay-checkin/internal/bypass"
	"github.com/pysugar/relay-checkin/internal/config"
	"github.com/pysugar/relay-checkin/internal/httpx"
	"github.com/pysugar/relay-checkin/internal/provider"
)

// quotaDivisor converts the provider's raw quota unit into display dollars.
// Conversion happens here, at the boundary, before any comparison.
const quotaDivisor = 500000

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// session owns one account's outbound HTTP state: cookies, headers and the
// retry policy. Nothing here is shared between concurrent accounts except
// the pooled transport inside the http.Client.
type session struct {
	client  *http.Client
	profile provider.Profile
	account config.Account
	cookies map[string]string
	retry   httpx.RetryPolicy
	log     zerolog.Logger
}

func newSession(client *http.Client, acct config.Account, prof provider.Profile, retry httpx.RetryPolicy, log zerolog.Logger) *session {
	cookies := make(map[string]string, len(acct.Cookies))
	for k, v := range acct.Cookies {
		cookies[k] = v
	}
	return &session{
		client:  client,
		profile: prof,
		account: acct,
		cookies: cookies,
		retry:   retry,
		log:     log,
	}
}

// withBypassTokens returns a copy of the session whose cookie set is
// augmented with the bypass tokens. The original session is untouched.
func (s *session) withBypassTokens(tokens bypass.TokenSet) *session {
	merged := make(map[string]string, len(s.cookies)+len(tokens))
	for k, v := range tokens {
		merged[k] = v
	}
	// User cookies win on collision.
	for k, v := range s.cookies {
		merged[k] = v
	}

	clone := *s
	clone.cookies = merged
	return &clone
}

func (s *session) cookieHeader() string {
	names := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+s.cookies[name])
	}
	return strings.Join(pairs, "; ")
}

func (s *session) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", s.profile.Domain)
	req.Header.Set("Origin", s.profile.Domain)
	req.Header.Set("Cookie", s.cookieHeader())
	req.Header.Set(s.profile.APIUserKey, s.account.APIUser)
	return req, nil
}

// do runs one request under the retry policy and returns status + body.
func (s *session) do(ctx context.Context, method, url string, extraHeaders map[string]string) (int, []byte, error) {
	var status int
	var body []byte

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		req, err := s.newRequest(ctx, method, url)
		if err != nil {
			return err
		}
		for k, v := range extraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		// Exhausted retries keep their transient cause in the chain.
		if httpx.IsTransient(err) {
			return 0, nil, wrapError(ErrTransient, err, "%s %s", method, url)
		}
		return 0, nil, wrapError(ErrUnexpected, err, "%s %s", method, url)
	}
	s.log.Debug().Str("method", method).Str("url", url).Int("status", status).Msg("provider call")
	return status, body, nil
}

type userInfoResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Quota     int64 `json:"quota"`
		UsedQuota int64 `json:"used_quota"`
	} `json:"data"`
}

// FetchBalance reads the account info endpoint and returns the scaled
// balance and used quota.
func (s *session) FetchBalance(ctx context.Context) (quota, used float64, err error) {
	status, body, err := s.do(ctx, http.MethodGet, s.profile.UserInfoURL(), nil)
	if err != nil {
		return 0, 0, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return 0, 0, newError(ErrSessionInvalid, "user info returned HTTP %d", status)
	}
	if status != http.StatusOK {
		return 0, 0, newError(ErrRejected, "user info returned HTTP %d", status)
	}

	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, 0, wrapError(ErrSiteDefense, err, "user info response is not JSON")
	}
	if !info.Success {
		if looksLikeDeadSession(info.Message) {
			return 0, 0, newError(ErrSessionInvalid, "user info rejected: %s", info.Message)
		}
		return 0, 0, newError(ErrRejected, "user info rejected: %s", info.Message)
	}

	return scaleQuota(info.Data.Quota), scaleQuota(info.Data.UsedQuota), nil
}

type signinResponse struct {
	Ret     int    `json:"ret"`
	Code    *int   `json:"code"`
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

// ok accepts any of the success spellings seen across relay providers:
// ret==1, code==0 (pointer, so an absent code is not a success), or a bare
// success flag.
func (r signinResponse) ok() bool {
	return r.Ret == 1 || r.Success || (r.Code != nil && *r.Code == 0)
}

func (r signinResponse) reason() string {
	if r.Msg != "" {
		return r.Msg
	}
	if r.Message != "" {
		return r.Message
	}
	return "unknown reason"
}

// PostSignin calls the explicit signin endpoint. nil means the endpoint
// accepted the signin; every failure carries an ErrorKind that tells the
// dispatcher whether to fall back, stop, or give up.
func (s *session) PostSignin(ctx context.Context) error {
	headers := map[string]string{
		"Content-Type":     "application/json",
		"X-Requested-With": "XMLHttpRequest",
	}
	status, body, err := s.do(ctx, http.MethodPost, s.profile.SignInURL(), headers)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(ErrSessionInvalid, "signin returned HTTP %d", status)
	case status != http.StatusOK:
		return newError(ErrRejected, "signin returned HTTP %d", status)
	}

	var result signinResponse
	if err := json.Unmarshal(body, &result); err != nil {
		// Challenge pages come back as HTML with status 200.
		return wrapError(ErrSiteDefense, err, "signin response is not JSON")
	}
	if result.ok() {
		return nil
	}
	if looksLikeDeadSession(result.reason()) {
		return newError(ErrSessionInvalid, "signin rejected: %s", result.reason())
	}
	return newError(ErrRejected, "signin rejected: %s", result.reason())
}

// Visit performs a lightweight GET used by the implicit-trigger flow. The
// body is discarded; only reachability matters.
func (s *session) Visit(ctx context.Context, url string) error {
	status, _, err := s.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if status >= http.StatusInternalServerError {
		return newError(ErrRejected, "visit %s returned HTTP %d", url, status)
	}
	return nil
}

func looksLikeDeadSession(message string) bool {
	msg := strings.ToLower(message)
	for _, marker := range []string{"not logged in", "unauthorized", "access token", "未登录", "无权"} {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func scaleQuota(raw int64) float64 {
	return round2(float64(raw) / quotaDivisor)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
