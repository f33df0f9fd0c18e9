package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testAppID = "4798ddd6-78b6-4bca-a3fd-6bed016016f6"

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("WORKFLOW_API_KEY", "sk-test")
	t.Setenv("WORKFLOW_APP_ID", testAppID)
	t.Setenv("WORKFLOW_TIMEOUT", "15s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Workflow.APIKey != "sk-test" {
		t.Errorf("Expected api key 'sk-test', got %q", cfg.Workflow.APIKey)
	}
	if cfg.Workflow.Timeout != 15*time.Second {
		t.Errorf("Expected timeout 15s, got %s", cfg.Workflow.Timeout)
	}
	if cfg.Assistant.Workflow != "Chatbot.flow" {
		t.Errorf("Expected default assistant workflow, got %q", cfg.Assistant.Workflow)
	}
	if cfg.Trivia.Workflow != "NewportTrivia.flow" {
		t.Errorf("Expected default trivia workflow, got %q", cfg.Trivia.Workflow)
	}
	if cfg.Trivia.Seed != "All things Newport" {
		t.Errorf("Expected default trivia seed, got %q", cfg.Trivia.Seed)
	}
	if cfg.Server.IdleTimeout != 30*time.Minute || cfg.Server.MaxSessions != 1000 {
		t.Errorf("Unexpected server limits: idle=%s max=%d", cfg.Server.IdleTimeout, cfg.Server.MaxSessions)
	}
	if cfg.Widget != WidgetAssistant || cfg.UI != UITerminal {
		t.Errorf("Unexpected runtime defaults: widget=%q ui=%q", cfg.Widget, cfg.UI)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		appID string
	}{
		{"missing api key", "", testAppID},
		{"missing app id", "sk-test", ""},
		{"app id is not a uuid", "sk-test", "not-a-uuid"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("WORKFLOW_API_KEY", tc.key)
			t.Setenv("WORKFLOW_APP_ID", tc.appID)

			if _, err := Load(""); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	os.Unsetenv("WORKFLOW_API_KEY")
	os.Unsetenv("WORKFLOW_APP_ID")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
workflow:
  api_key: sk-file
  app_id: ` + testAppID + `
trivia:
  seed: Cliff Walk
server:
  addr: 127.0.0.1:9000
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Workflow.APIKey != "sk-file" {
		t.Errorf("Expected api key from file, got %q", cfg.Workflow.APIKey)
	}
	if cfg.Trivia.Seed != "Cliff Walk" {
		t.Errorf("Expected seed from file, got %q", cfg.Trivia.Seed)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Expected addr from file, got %q", cfg.Server.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate_RejectsUnknownWidget(t *testing.T) {
	t.Setenv("WORKFLOW_API_KEY", "sk-test")
	t.Setenv("WORKFLOW_APP_ID", testAppID)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	cfg.Widget = "poker"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown widget")
	}
}

func TestLogValue_HidesAPIKey(t *testing.T) {
	cfg := Config{Workflow: Workflow{APIKey: "sk-secret", AppID: testAppID}}

	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))
	logger.Info("config", "config", cfg)

	if strings.Contains(sb.String(), "sk-secret") {
		t.Errorf("API key leaked into log output: %s", sb.String())
	}
	if !strings.Contains(sb.String(), testAppID) {
		t.Errorf("Expected app id in log output: %s", sb.String())
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"bogus", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := (Log{Level: tc.level}).SlogLevel(); got != tc.expected {
			t.Errorf("SlogLevel(%q) = %v, expected %v", tc.level, got, tc.expected)
		}
	}
}
