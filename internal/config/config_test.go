package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeConfig(t, `{
		"bot": {"token": "123:abc", "agent_chat_id": "-100200300"},
		"store": {"backend": "sqlite", "sqlite_path": "/tmp/t.db"},
		"api": {"host": "127.0.0.1", "port": 9090, "api_key": "k"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.AgentChatID != "-100200300" {
		t.Errorf("unexpected agent chat id %q", cfg.Bot.AgentChatID)
	}
	if cfg.Store.TicketSheet != "Konsultasi" {
		t.Errorf("expected default ticket sheet, got %q", cfg.Store.TicketSheet)
	}
	if cfg.Store.TimeoutSeconds != 10 {
		t.Errorf("expected default timeout, got %d", cfg.Store.TimeoutSeconds)
	}
	if cfg.Digest.StaleLockMinutes != 120 {
		t.Errorf("expected default stale minutes, got %d", cfg.Digest.StaleLockMinutes)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	path := writeConfig(t, `{"store": {"backend": "memory"}}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"bot.token", "bot.agent_chat_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got: %v", want, err)
		}
	}
}

func TestValidateSheetsBackend(t *testing.T) {
	cfg := &Config{
		Bot:   BotConfig{Token: "t", AgentChatID: "-1"},
		Store: StoreConfig{Backend: "sheets"},
	}
	cfg.applyDefaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for sheets backend without spreadsheet")
	}
	if !strings.Contains(err.Error(), "spreadsheet_id") {
		t.Errorf("expected spreadsheet_id complaint, got: %v", err)
	}
}

func TestValidateBadChatID(t *testing.T) {
	cfg := &Config{
		Bot:   BotConfig{Token: "t", AgentChatID: "not-a-number"},
		Store: StoreConfig{Backend: "memory"},
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-numeric chat id")
	}
}

func TestValidateUnknownBackend(t *testing.T) {
	cfg := &Config{
		Bot:   BotConfig{Token: "t", AgentChatID: "-1"},
		Store: StoreConfig{Backend: "redis"},
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadFromEnvInfersBackend(t *testing.T) {
	t.Setenv("TANYA_BOT_TOKEN", "123:abc")
	t.Setenv("TANYA_AGENT_CHAT_ID", "-100")
	t.Setenv("TANYA_SQLITE_PATH", "/tmp/x.db")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load from env: %v", err)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("expected inferred sqlite backend, got %q", cfg.Store.Backend)
	}
}

func TestLoadFromEnvSlackNeedsChannel(t *testing.T) {
	t.Setenv("TANYA_BOT_TOKEN", "123:abc")
	t.Setenv("TANYA_AGENT_CHAT_ID", "-100")
	t.Setenv("TANYA_SLACK_TOKEN", "xoxb-1")

	_, err := LoadFromEnv()
	if err == nil || !strings.Contains(err.Error(), "slack.channel") {
		t.Errorf("expected slack.channel complaint, got: %v", err)
	}
}

func TestCredentialsInlineWinsOverFile(t *testing.T) {
	sc := &StoreConfig{CredentialsJSON: `{"type":"service_account"}`}
	got, err := sc.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if !strings.Contains(string(got), "service_account") {
		t.Errorf("unexpected credentials %q", got)
	}

	empty := &StoreConfig{}
	if _, err := empty.Credentials(); err == nil {
		t.Error("expected error when no credentials configured")
	}
}
