package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the top-level tanya configuration.
type Config struct {
	Bot    BotConfig    `json:"bot"`
	Store  StoreConfig  `json:"store"`
	API    APIConfig    `json:"api"`
	Slack  *SlackConfig `json:"slack,omitempty"`
	Digest DigestConfig `json:"digest"`
}

// BotConfig holds Telegram bot settings.
type BotConfig struct {
	Token string `json:"token"`
	// AgentChatID is the chat ID of the single shared agent group. Claim
	// and reply actions are only honoured from this chat.
	AgentChatID string `json:"agent_chat_id"`
	// PublicDomain switches the bot from long polling to webhook mode
	// when set (e.g. "bot.example.org").
	PublicDomain string `json:"public_domain,omitempty"`
	// WebhookSecret is the secret token Telegram echoes back on webhook
	// calls. Generated if empty.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// StoreConfig selects and configures the shared tabular store backend.
type StoreConfig struct {
	// Backend is "sheets", "sqlite" or "memory".
	Backend string `json:"backend"`
	// SpreadsheetID identifies the Google spreadsheet (sheets backend).
	SpreadsheetID string `json:"spreadsheet_id,omitempty"`
	// CredentialsJSON is the inline service-account key. CredentialsFile
	// is consulted when it is empty.
	CredentialsJSON string `json:"credentials_json,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	// SQLitePath is the database path (sqlite backend).
	SQLitePath string `json:"sqlite_path,omitempty"`
	// TicketSheet is the worksheet holding ticket rows.
	TicketSheet string `json:"ticket_sheet,omitempty"`
	// TimeoutSeconds bounds each store call. Default 10.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// SlackConfig holds the optional one-way Slack mirror of agent-channel
// notifications.
type SlackConfig struct {
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

// DigestConfig holds the periodic pending-ticket digest.
type DigestConfig struct {
	// Schedule is a cron expression or a predefined schedule like
	// "@every 4h". Empty disables the digest.
	Schedule string `json:"schedule,omitempty"`
	// StaleLockMinutes marks Locked tickets older than this in the
	// digest. Default 120. Locks are never released automatically.
	StaleLockMinutes int `json:"stale_lock_minutes,omitempty"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds the config from environment variables with the
// TANYA_ prefix. This is the deployment mode on platforms where a config
// file is inconvenient.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Bot: BotConfig{
			Token:         os.Getenv("TANYA_BOT_TOKEN"),
			AgentChatID:   os.Getenv("TANYA_AGENT_CHAT_ID"),
			PublicDomain:  os.Getenv("TANYA_PUBLIC_DOMAIN"),
			WebhookSecret: os.Getenv("TANYA_WEBHOOK_SECRET"),
		},
		Store: StoreConfig{
			Backend:         getenv("TANYA_STORE", ""),
			SpreadsheetID:   os.Getenv("TANYA_SPREADSHEET_ID"),
			CredentialsJSON: os.Getenv("TANYA_GOOGLE_CREDENTIALS"),
			CredentialsFile: os.Getenv("TANYA_GOOGLE_CREDENTIALS_FILE"),
			SQLitePath:      os.Getenv("TANYA_SQLITE_PATH"),
			TicketSheet:     os.Getenv("TANYA_TICKET_SHEET"),
			TimeoutSeconds:  getenvInt("TANYA_STORE_TIMEOUT", 0),
		},
		API: APIConfig{
			Host: getenv("TANYA_API_HOST", "0.0.0.0"),
			Port: getenvInt("TANYA_API_PORT", 8080),
			Key:  os.Getenv("TANYA_API_KEY"),
		},
		Digest: DigestConfig{
			Schedule:         os.Getenv("TANYA_DIGEST_SCHEDULE"),
			StaleLockMinutes: getenvInt("TANYA_STALE_LOCK_MINUTES", 0),
		},
	}

	if token := os.Getenv("TANYA_SLACK_TOKEN"); token != "" {
		cfg.Slack = &SlackConfig{
			BotToken: token,
			Channel:  os.Getenv("TANYA_SLACK_CHANNEL"),
		}
	}

	// Infer the backend when unset: sheets if a spreadsheet is
	// configured, sqlite if a path is, memory otherwise.
	if cfg.Store.Backend == "" {
		switch {
		case cfg.Store.SpreadsheetID != "":
			cfg.Store.Backend = "sheets"
		case cfg.Store.SQLitePath != "":
			cfg.Store.Backend = "sqlite"
		default:
			cfg.Store.Backend = "memory"
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.TicketSheet == "" {
		c.Store.TicketSheet = "Konsultasi"
	}
	if c.Store.TimeoutSeconds <= 0 {
		c.Store.TimeoutSeconds = 10
	}
	if c.Digest.StaleLockMinutes <= 0 {
		c.Digest.StaleLockMinutes = 120
	}
}

// Credentials returns the service-account key bytes for the sheets
// backend, reading the file when the inline value is empty.
func (c *StoreConfig) Credentials() ([]byte, error) {
	if c.CredentialsJSON != "" {
		return []byte(c.CredentialsJSON), nil
	}
	if c.CredentialsFile != "" {
		data, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("config: read credentials file: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("config: sheets backend needs credentials_json or credentials_file")
}

// Validate checks for required fields, collecting every failure.
func (c *Config) Validate() error {
	var errs []string

	if c.Bot.Token == "" {
		errs = append(errs, "bot.token is required")
	}
	if c.Bot.AgentChatID == "" {
		errs = append(errs, "bot.agent_chat_id is required")
	} else if _, err := strconv.ParseInt(c.Bot.AgentChatID, 10, 64); err != nil {
		errs = append(errs, fmt.Sprintf("bot.agent_chat_id %q is not a chat id", c.Bot.AgentChatID))
	}

	switch c.Store.Backend {
	case "sheets":
		if c.Store.SpreadsheetID == "" {
			errs = append(errs, "store.spreadsheet_id is required for the sheets backend")
		}
		if c.Store.CredentialsJSON == "" && c.Store.CredentialsFile == "" {
			errs = append(errs, "store.credentials_json or store.credentials_file is required for the sheets backend")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite backend")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of sheets, sqlite, memory", c.Store.Backend))
	}

	if c.Slack != nil {
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required when slack is configured")
		}
		if c.Slack.Channel == "" {
			errs = append(errs, "slack.channel is required when slack is configured")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
