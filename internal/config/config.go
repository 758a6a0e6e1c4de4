// Package config loads the account list the run operates on. Accounts come
// from the CHECKIN_ACCOUNTS environment variable as a JSON array; provider
// profiles live in the provider package.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Account is one configured account at one provider.
type Account struct {
	Provider      string
	APIUser       string
	Cookies       map[string]string
	Name          string
	Username      string
	Password      string
	OAuthProvider string // github/google/linuxdo, empty when not configured
}

// Key uniquely identifies the account across runs.
func (a Account) Key() string { return a.Provider + "_" + a.APIUser }

// DisplayName returns the configured name or a positional fallback.
func (a Account) DisplayName(index int) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("Account %d", index+1)
}

// HasCredentials reports whether a username/password browser login fallback
// is configured.
func (a Account) HasCredentials() bool { return a.Username != "" && a.Password != "" }

// HasOAuth reports whether an OAuth browser re-auth fallback is configured.
func (a Account) HasOAuth() bool { return a.OAuthProvider != "" }

type accountJSON struct {
	Provider      string          `json:"provider"`
	APIUser       string          `json:"api_user"`
	Cookies       json.RawMessage `json:"cookies"`
	Name          string          `json:"name"`
	Username      string          `json:"username"`
	Password      string          `json:"password"`
	OAuthProvider string          `json:"oauth_provider"`
}

// accountsEnv is the environment variable carrying the account JSON array.
const accountsEnv = "CHECKIN_ACCOUNTS"

// LoadAccounts reads and validates the account list from the environment.
func LoadAccounts() ([]Account, error) {
	raw := strings.TrimSpace(os.Getenv(accountsEnv))
	if raw == "" {
		return nil, fmt.Errorf("%s is not set", accountsEnv)
	}
	return ParseAccounts(raw)
}

// ParseAccounts decodes the JSON account array. Secrets pasted into CI
// variables often pick up literal newlines and tabs inside the JSON
// structure; when the first decode fails the input is re-tried with control
// whitespace collapsed.
func ParseAccounts(raw string) ([]Account, error) {
	var entries []accountJSON
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		cleaned := cleanupJSON(raw)
		if second := json.Unmarshal([]byte(cleaned), &entries); second != nil {
			return nil, fmt.Errorf("parse %s: %w", accountsEnv, err)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s contains no accounts", accountsEnv)
	}

	accounts := make([]Account, 0, len(entries))
	for i, e := range entries {
		acct, err := buildAccount(e)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i+1, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func buildAccount(e accountJSON) (Account, error) {
	if strings.TrimSpace(e.APIUser) == "" {
		return Account{}, fmt.Errorf("api_user is required")
	}
	cookies, err := parseCookies(e.Cookies)
	if err != nil {
		return Account{}, err
	}
	if len(cookies) == 0 {
		return Account{}, fmt.Errorf("cookies are required")
	}

	provider := strings.ToLower(strings.TrimSpace(e.Provider))
	if provider == "" {
		provider = "anyrouter"
	}

	return Account{
		Provider:      provider,
		APIUser:       strings.TrimSpace(e.APIUser),
		Cookies:       cookies,
		Name:          strings.TrimSpace(e.Name),
		Username:      e.Username,
		Password:      e.Password,
		OAuthProvider: strings.ToLower(strings.TrimSpace(e.OAuthProvider)),
	}, nil
}

// parseCookies accepts either an object form {"session": "..."} or a raw
// Cookie header string "session=...; other=...".
func parseCookies(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("cookies are required")
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return nil, fmt.Errorf("cookies must be an object or a cookie string")
	}

	cookies := make(map[string]string)
	for _, pair := range strings.Split(asString, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		cookies[strings.TrimSpace(key)] = value
	}
	return cookies, nil
}

var (
	controlWS  = regexp.MustCompile(`[\n\r\t]+`)
	repeatedWS = regexp.MustCompile(`\s+`)
	afterColon = regexp.MustCompile(`:\s+`)
	afterComma = regexp.MustCompile(`,\s+`)
)

// cleanupJSON strips control characters and collapses whitespace around JSON
// structure. This can eat whitespace inside string values, so it only runs
// as a fallback after a strict parse has failed.
func cleanupJSON(raw string) string {
	s := controlWS.ReplaceAllString(raw, "")
	s = repeatedWS.ReplaceAllString(s, " ")
	s = afterColon.ReplaceAllString(s, ":")
	s = afterComma.ReplaceAllString(s, ",")
	return s
}
