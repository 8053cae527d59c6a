package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values. Secrets are expected
// to arrive through the environment in deployments; the YAML file covers
// everything else.
const (
	EnvConfigPath        = "CONFIG_PATH"
	EnvDBConnection      = "DB_CONNECTION"
	EnvPort              = "PORT"
	EnvTelegramToken     = "TELEGRAM_BOT_TOKEN"
	EnvOpenRouterKey     = "OPENROUTER_API_KEY"
	EnvRedisURL          = "REDIS_URL"
	EnvLeadSecret        = "LEAD_SECRET"
	EnvJWTSecret         = "JWT_SECRET"
	EnvJWTExpiry         = "JWT_EXPIRY"
	EnvAdminPasswordHash = "ADMIN_PASSWORD_HASH"
)

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`            // HTTP listen port.
	AllowedOrigins []string `yaml:"allowed-origins"` // CORS allow-list for the lead endpoint.
}

// TelegramConfig holds the Bot API credentials and delivery mode.
type TelegramConfig struct {
	Token          string `yaml:"token"`
	WebhookURL     string `yaml:"webhook-url"`    // Empty switches the bot to long polling.
	WebhookSecret  string `yaml:"webhook-secret"` // Verified against X-Telegram-Bot-Api-Secret-Token.
	PollTimeoutSec int    `yaml:"poll-timeout"`   // Long-poll timeout in seconds.
	NotifyChatID   int64  `yaml:"notify-chat-id"` // Chat that receives new-lead notifications.
}

// LeadsConfig holds the web lead form settings.
type LeadsConfig struct {
	Secret          string `yaml:"secret"`           // Shared secret for the web form endpoint.
	CooldownSeconds int    `yaml:"cooldown-seconds"` // Per-user gap between lead submissions.
	RedisURL        string `yaml:"redis-url"`        // Optional; cooldowns fall back to memory without it.
}

// AbuseConfig holds the knobs for the abuse guard and limiter.
type AbuseConfig struct {
	StatePath                  string `yaml:"state-path"`
	ResetViolationsOnBanExpiry bool   `yaml:"reset-violations-on-ban-expiry"`
}

// AIConfig holds the OpenRouter fallback settings.
type AIConfig struct {
	APIKey      string  `yaml:"api-key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base-url"`
	MaxTokens   int     `yaml:"max-tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout"`
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// AdminConfig holds the credentials for the admin API.
type AdminConfig struct {
	Username     string    `yaml:"username"`
	PasswordHash string    `yaml:"password-hash"` // bcrypt hash of the admin password.
	JWT          JWTConfig `yaml:"jwt"`
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Telegram TelegramConfig `yaml:"telegram"`
	Leads    LeadsConfig    `yaml:"leads"`
	Abuse    AbuseConfig    `yaml:"abuse"`
	AI       AIConfig       `yaml:"ai"`
	Admin    AdminConfig    `yaml:"admin"`

	DatabaseDSN string `yaml:"database-dsn"`
	CatalogPath string `yaml:"catalog-path"` // Optional YAML package catalog; empty uses the built-ins.
	DefaultLang string `yaml:"default-lang"`
	BrandName   string `yaml:"brand-name"`
}

const defaultJWTExpiry = 30 * 24 * time.Hour

// Load reads the YAML config file, fills defaults and applies environment
// overrides. A missing file is not an error: a config built purely from
// defaults and the environment is enough for local runs.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, errRead := os.ReadFile(path)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return nil, fmt.Errorf("read config file %s: %w", path, errRead)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		c.DatabaseDSN = dsn
	}
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		if port, errParse := strconv.Atoi(raw); errParse == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if token := strings.TrimSpace(os.Getenv(EnvTelegramToken)); token != "" {
		c.Telegram.Token = token
	}
	if key := strings.TrimSpace(os.Getenv(EnvOpenRouterKey)); key != "" {
		c.AI.APIKey = key
	}
	if url := strings.TrimSpace(os.Getenv(EnvRedisURL)); url != "" {
		c.Leads.RedisURL = url
	}
	if secret := strings.TrimSpace(os.Getenv(EnvLeadSecret)); secret != "" {
		c.Leads.Secret = secret
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		c.Admin.JWT.Secret = secret
	}
	if raw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); raw != "" {
		if expiry, errParse := time.ParseDuration(raw); errParse == nil && expiry > 0 {
			c.Admin.JWT.Expiry = expiry
		}
	}
	if hash := strings.TrimSpace(os.Getenv(EnvAdminPasswordHash)); hash != "" {
		c.Admin.PasswordHash = hash
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Telegram.PollTimeoutSec <= 0 {
		c.Telegram.PollTimeoutSec = 50
	}
	if c.Leads.CooldownSeconds <= 0 {
		c.Leads.CooldownSeconds = 86400
	}
	if strings.TrimSpace(c.Abuse.StatePath) == "" {
		c.Abuse.StatePath = "data/abuse_state.json"
	}
	if strings.TrimSpace(c.AI.Model) == "" {
		c.AI.Model = "openai/gpt-4o-mini"
	}
	if strings.TrimSpace(c.AI.BaseURL) == "" {
		c.AI.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 350
	}
	if c.AI.Temperature <= 0 {
		c.AI.Temperature = 0.4
	}
	if c.AI.TimeoutSec <= 0 {
		c.AI.TimeoutSec = 30
	}
	if c.Admin.JWT.Expiry <= 0 {
		c.Admin.JWT.Expiry = defaultJWTExpiry
	}
	if strings.TrimSpace(c.Admin.Username) == "" {
		c.Admin.Username = "admin"
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		c.DatabaseDSN = "data/leadbot.db"
	}
	if lang := strings.ToLower(strings.TrimSpace(c.DefaultLang)); lang == "ru" || lang == "en" {
		c.DefaultLang = lang
	} else {
		c.DefaultLang = "ru"
	}
	if strings.TrimSpace(c.BrandName) == "" {
		c.BrandName = "Vektor Web"
	}
}
