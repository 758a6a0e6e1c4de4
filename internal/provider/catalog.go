// Package provider holds the per-provider signin profiles: which endpoints a
// provider exposes, which bypass tokens its edge demands, and which strategy
// family triggers its reward action.
package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Family is the closed set of signin strategy families. Each family owns its
// own ordered fallback chain in the dispatcher; adding a family is a
// compile-time enumeration change.
type Family string

const (
	// FamilyBypassToken providers expose an explicit signin endpoint guarded
	// by an anti-bot edge: direct HTTP first, cached bypass tokens second.
	FamilyBypassToken Family = "bypass_token"

	// FamilyImplicitTrigger providers grant the reward when the account page
	// itself is visited; there is no signin endpoint to call.
	FamilyImplicitTrigger Family = "implicit_trigger"
)

// Config-file spellings kept from the original deployment format.
const (
	methodBrowserWAF = "browser_waf"
	methodHTTPLogin  = "http_login"
)

var providerNameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Profile describes one provider. Immutable once loaded.
type Profile struct {
	Name             string
	Domain           string
	Family           Family
	LoginPath        string
	SignInPath       string // empty for FamilyImplicitTrigger
	UserInfoPath     string
	APIUserKey       string
	BypassTokenNames []string
}

// LoginURL is the absolute URL of the provider login page.
func (p Profile) LoginURL() string { return p.Domain + p.LoginPath }

// SignInURL is the absolute URL of the explicit signin endpoint.
// Only meaningful for FamilyBypassToken profiles.
func (p Profile) SignInURL() string { return p.Domain + p.SignInPath }

// UserInfoURL is the absolute URL of the account info endpoint.
func (p Profile) UserInfoURL() string { return p.Domain + p.UserInfoPath }

// NeedsBypassTokens reports whether the provider's edge demands bypass
// tokens before API calls are accepted.
func (p Profile) NeedsBypassTokens() bool { return len(p.BypassTokenNames) > 0 }

type profileConfig struct {
	Domain           string   `yaml:"domain" json:"domain"`
	SigninMethod     string   `yaml:"signin_method" json:"signin_method"`
	LoginPath        string   `yaml:"login_path" json:"login_path"`
	SignInPath       *string  `yaml:"sign_in_path" json:"sign_in_path"`
	UserInfoPath     string   `yaml:"user_info_path" json:"user_info_path"`
	APIUserKey       string   `yaml:"api_user_key" json:"api_user_key"`
	BypassTokenNames []string `yaml:"bypass_token_names" json:"bypass_token_names"`
}

type fileConfig struct {
	Providers map[string]profileConfig `yaml:"providers"`
}

// Catalog is the loaded provider set. Built once per run, then read-only.
type Catalog struct {
	profiles map[string]Profile
}

// Get returns the profile for name, or false when unknown.
func (c *Catalog) Get(name string) (Profile, bool) {
	p, ok := c.profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the configured provider names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load builds the catalog with the deployment precedence:
//  1. builtin defaults
//  2. providers file (yaml), replacing the defaults entirely when present
//  3. CHECKIN_PROVIDERS env JSON, overriding/extending per provider
//
// A malformed file or env entry disables only that entry; the catalog itself
// always loads.
func Load(providersFile string) (*Catalog, []error) {
	var warnings []error

	profiles := builtinProfiles()

	if fromFile, err := loadFile(providersFile); err != nil {
		warnings = append(warnings, err)
	} else if fromFile != nil {
		profiles = fromFile
	}

	if raw := strings.TrimSpace(os.Getenv("CHECKIN_PROVIDERS")); raw != "" {
		var overlay map[string]profileConfig
		if err := json.Unmarshal([]byte(raw), &overlay); err != nil {
			warnings = append(warnings, fmt.Errorf("parse CHECKIN_PROVIDERS: %w", err))
		} else {
			for name, cfg := range overlay {
				p, err := buildProfile(name, cfg)
				if err != nil {
					warnings = append(warnings, fmt.Errorf("provider %q: %w", name, err))
					continue
				}
				profiles[p.Name] = p
			}
		}
	}

	return &Catalog{profiles: profiles}, warnings
}

func loadFile(path string) (map[string]Profile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}

	profiles := make(map[string]Profile, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		p, err := buildProfile(name, pc)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

func buildProfile(name string, cfg profileConfig) (Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !providerNameRegexp.MatchString(name) {
		return Profile{}, fmt.Errorf("invalid provider name")
	}
	if strings.TrimSpace(cfg.Domain) == "" {
		return Profile{}, fmt.Errorf("domain is required")
	}

	family, err := familyFromMethod(cfg.SigninMethod)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		Name:         name,
		Domain:       strings.TrimRight(strings.TrimSpace(cfg.Domain), "/"),
		Family:       family,
		LoginPath:    defaultString(cfg.LoginPath, "/login"),
		UserInfoPath: defaultString(cfg.UserInfoPath, "/api/user/self"),
		APIUserKey:   defaultString(cfg.APIUserKey, "new-api-user"),
	}

	switch family {
	case FamilyBypassToken:
		if cfg.SignInPath != nil {
			p.SignInPath = strings.TrimSpace(*cfg.SignInPath)
		} else {
			p.SignInPath = "/api/user/sign_in"
		}
		if p.SignInPath == "" {
			return Profile{}, fmt.Errorf("sign_in_path is required for %s providers", methodBrowserWAF)
		}
	case FamilyImplicitTrigger:
		// Visiting the account page is the trigger; an explicit signin path
		// is a config mistake.
		if cfg.SignInPath != nil && strings.TrimSpace(*cfg.SignInPath) != "" {
			return Profile{}, fmt.Errorf("sign_in_path must be empty for %s providers", methodHTTPLogin)
		}
	}

	for _, n := range cfg.BypassTokenNames {
		if n = strings.TrimSpace(n); n != "" {
			p.BypassTokenNames = append(p.BypassTokenNames, n)
		}
	}
	return p, nil
}

func familyFromMethod(method string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", methodBrowserWAF:
		return FamilyBypassToken, nil
	case methodHTTPLogin:
		return FamilyImplicitTrigger, nil
	default:
		return "", fmt.Errorf("unknown signin_method %q", method)
	}
}

func defaultString(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// builtinProfiles are the shipped defaults, used when no providers file is
// present.
func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"anyrouter": {
			Name:             "anyrouter",
			Domain:           "https://anyrouter.top",
			Family:           FamilyBypassToken,
			LoginPath:        "/login",
			SignInPath:       "/api/user/sign_in",
			UserInfoPath:     "/api/user/self",
			APIUserKey:       "new-api-user",
			BypassTokenNames: []string{"acw_tc", "cdn_sec_tc", "acw_sc__v2"},
		},
		"agentrouter": {
			Name:         "agentrouter",
			Domain:       "https://agentrouter.org",
			Family:       FamilyImplicitTrigger,
			LoginPath:    "/login",
			UserInfoPath: "/api/user/self",
			APIUserKey:   "new-api-user",
		},
	}
}
