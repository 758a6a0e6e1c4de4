package provider

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_BuiltinDefaults(t *testing.T) {
	t.Setenv("CHECKIN_PROVIDERS", "")

	cat, warnings := Load("")
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	p, ok := cat.Get("anyrouter")
	if !ok {
		t.Fatal("builtin anyrouter missing")
	}
	if p.Family != FamilyBypassToken {
		t.Fatalf("expected bypass_token family, got %q", p.Family)
	}
	if p.SignInURL() != "https://anyrouter.top/api/user/sign_in" {
		t.Fatalf("bad signin URL: %s", p.SignInURL())
	}
	if len(p.BypassTokenNames) != 3 {
		t.Fatalf("expected 3 bypass token names, got %v", p.BypassTokenNames)
	}

	p, ok = cat.Get("agentrouter")
	if !ok {
		t.Fatal("builtin agentrouter missing")
	}
	if p.Family != FamilyImplicitTrigger {
		t.Fatalf("expected implicit_trigger family, got %q", p.Family)
	}
	if p.SignInPath != "" {
		t.Fatalf("implicit provider must have no signin path, got %q", p.SignInPath)
	}
	if p.NeedsBypassTokens() {
		t.Fatal("agentrouter should not need bypass tokens")
	}
}

func TestLoad_FileReplacesDefaults(t *testing.T) {
	t.Setenv("CHECKIN_PROVIDERS", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	content := `providers:
  myrelay:
    domain: https://relay.example.com/
    signin_method: browser_waf
    bypass_token_names: [acw_tc, " ", acw_sc__v2]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write providers file: %v", err)
	}

	cat, warnings := Load(path)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if _, ok := cat.Get("anyrouter"); ok {
		t.Fatal("file should replace builtin defaults")
	}

	p, ok := cat.Get("myrelay")
	if !ok {
		t.Fatal("myrelay missing")
	}
	if p.Domain != "https://relay.example.com" {
		t.Fatalf("trailing slash not trimmed: %q", p.Domain)
	}
	if p.LoginPath != "/login" || p.UserInfoPath != "/api/user/self" || p.APIUserKey != "new-api-user" {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if len(p.BypassTokenNames) != 2 {
		t.Fatalf("blank token names not cleaned: %v", p.BypassTokenNames)
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("CHECKIN_PROVIDERS", `{
		"anyrouter": {"domain": "https://mirror.anyrouter.top", "signin_method": "browser_waf"},
		"extra": {"domain": "https://extra.example.com", "signin_method": "http_login"},
		"Bad Name": {"domain": "https://x.example.com"}
	}`)

	cat, warnings := Load("")
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning for the invalid name, got %v", warnings)
	}

	p, _ := cat.Get("anyrouter")
	if p.Domain != "https://mirror.anyrouter.top" {
		t.Fatalf("env overlay did not override domain: %q", p.Domain)
	}
	if _, ok := cat.Get("extra"); !ok {
		t.Fatal("env overlay did not extend catalog")
	}
	if _, ok := cat.Get("agentrouter"); !ok {
		t.Fatal("untouched builtin should survive the overlay")
	}
}

func TestBuildProfile_Validation(t *testing.T) {
	explicit := "/api/user/sign_in"
	empty := ""
	tests := []struct {
		name    string
		cfg     profileConfig
		wantErr bool
	}{
		{name: "missing domain", cfg: profileConfig{SigninMethod: "browser_waf"}, wantErr: true},
		{name: "unknown method", cfg: profileConfig{Domain: "https://x", SigninMethod: "carrier_pigeon"}, wantErr: true},
		{name: "implicit with signin path", cfg: profileConfig{Domain: "https://x", SigninMethod: "http_login", SignInPath: &explicit}, wantErr: true},
		{name: "bypass with blanked signin path", cfg: profileConfig{Domain: "https://x", SigninMethod: "browser_waf", SignInPath: &empty}, wantErr: true},
		{name: "method defaults to browser_waf", cfg: profileConfig{Domain: "https://x"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildProfile("p", tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildProfile error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
