package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, errLoad := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.DefaultLang != "ru" {
		t.Fatalf("expected default lang ru, got %q", cfg.DefaultLang)
	}
	if cfg.AI.Temperature != 0.4 || cfg.AI.MaxTokens != 350 {
		t.Fatalf("unexpected AI defaults: %+v", cfg.AI)
	}
	if cfg.Admin.JWT.Expiry != defaultJWTExpiry {
		t.Fatalf("expected default JWT expiry, got %v", cfg.Admin.JWT.Expiry)
	}
	if cfg.Leads.CooldownSeconds != 86400 {
		t.Fatalf("expected 24h lead cooldown default, got %d", cfg.Leads.CooldownSeconds)
	}
}

func TestLoadParsesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  port: 9090
  allowed-origins:
    - https://vektor-web.example
telegram:
  token: file-token
  webhook-url: https://bot.example/webhook
leads:
  cooldown-seconds: 120
abuse:
  state-path: /var/lib/leadbot/abuse.json
database-dsn: postgres://app@db/leads
default-lang: en
`
	if errWrite := os.WriteFile(path, []byte(doc), 0o644); errWrite != nil {
		t.Fatalf("write: %v", errWrite)
	}

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://vektor-web.example" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Telegram.Token != "file-token" {
		t.Fatalf("unexpected token %q", cfg.Telegram.Token)
	}
	if cfg.Leads.CooldownSeconds != 120 {
		t.Fatalf("expected cooldown 120, got %d", cfg.Leads.CooldownSeconds)
	}
	if cfg.Abuse.StatePath != "/var/lib/leadbot/abuse.json" {
		t.Fatalf("unexpected state path %q", cfg.Abuse.StatePath)
	}
	if cfg.DatabaseDSN != "postgres://app@db/leads" {
		t.Fatalf("unexpected dsn %q", cfg.DatabaseDSN)
	}
	if cfg.DefaultLang != "en" {
		t.Fatalf("expected lang en, got %q", cfg.DefaultLang)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
telegram:
  token: file-token
database-dsn: sqlite-file.db
admin:
  jwt:
    secret: file-secret
`
	if errWrite := os.WriteFile(path, []byte(doc), 0o644); errWrite != nil {
		t.Fatalf("write: %v", errWrite)
	}

	t.Setenv(EnvTelegramToken, "env-token")
	t.Setenv(EnvDBConnection, "postgres://env@db/leads")
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvJWTExpiry, "2h")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("expected env token, got %q", cfg.Telegram.Token)
	}
	if cfg.DatabaseDSN != "postgres://env@db/leads" {
		t.Fatalf("expected env dsn, got %q", cfg.DatabaseDSN)
	}
	if cfg.Admin.JWT.Secret != "env-secret" {
		t.Fatalf("expected env secret, got %q", cfg.Admin.JWT.Secret)
	}
	if cfg.Admin.JWT.Expiry != 2*time.Hour {
		t.Fatalf("expected 2h expiry, got %v", cfg.Admin.JWT.Expiry)
	}
}

func TestLoadRejectsUnknownLang(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte("default-lang: de\n"), 0o644); errWrite != nil {
		t.Fatalf("write: %v", errWrite)
	}

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.DefaultLang != "ru" {
		t.Fatalf("expected fallback to ru, got %q", cfg.DefaultLang)
	}
}

func TestResolveConfigPathDefault(t *testing.T) {
	got := ResolveConfigPath("  ")
	if got == "" || got == "  " {
		t.Fatalf("expected resolved default path, got %q", got)
	}
	if filepath.Base(got) != "config.yaml" {
		t.Fatalf("expected config.yaml base, got %q", got)
	}
}
