package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ValidFull(t *testing.T) {
	yaml := `
server:
  host: "127.0.0.1"
  port: 9090
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: "sk-test"
  base_url: "http://localhost:3000/v1"
  timeout: 10s
  temperature: 0.2
channels:
  - name: line
    type: line
    secret: "line-secret"
    token: "line-token"
    wake_word: "@bot"
  - name: dev
    type: dummy
prompts:
  dirs:
    - "./prompts"
router:
  enabled: true
  default: expense
calendar:
  backend: google
  calendar_id: "family@group.calendar.google.com"
  credentials_file: "/secrets/sa.json"
  list_window: 168h
expense:
  backend: sheets
  spreadsheet_id: "sheet-1"
  template: "Blank"
store:
  capacity: 5000
dedupe:
  size: 64
report:
  channel: line
  target: "C123"
timezone: "Asia/Tokyo"
logging:
  level: debug
  format: text
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Server
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server.host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want %d", cfg.Server.Port, 9090)
	}

	// LLM
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 10*time.Second {
		t.Errorf("llm.timeout = %v, want %v", cfg.LLM.Timeout, 10*time.Second)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("llm.temperature = %v, want 0.2", cfg.LLM.Temperature)
	}

	// Channels
	if len(cfg.Channels) != 2 {
		t.Fatalf("channels len = %d, want 2", len(cfg.Channels))
	}
	if cfg.Channels[0].WakeWord != "@bot" {
		t.Errorf("channels[0].wake_word = %q, want %q", cfg.Channels[0].WakeWord, "@bot")
	}
	if cfg.Channels[0].APIBase != "https://api.line.me" {
		t.Errorf("channels[0].api_base default = %q", cfg.Channels[0].APIBase)
	}
	if cfg.Channels[1].Type != "dummy" {
		t.Errorf("channels[1].type = %q, want %q", cfg.Channels[1].Type, "dummy")
	}

	// Router, calendar, expense
	if !cfg.Router.Enabled || cfg.Router.Default != "expense" {
		t.Errorf("router = %+v", cfg.Router)
	}
	if cfg.Calendar.ListWindow != 7*24*time.Hour {
		t.Errorf("calendar.list_window = %v", cfg.Calendar.ListWindow)
	}
	if cfg.Expense.Template != "Blank" {
		t.Errorf("expense.template = %q", cfg.Expense.Template)
	}

	// Store
	if cfg.Store.Capacity != 5000 {
		t.Errorf("store.capacity = %d, want %d", cfg.Store.Capacity, 5000)
	}
	if cfg.Dedupe.Size != 64 {
		t.Errorf("dedupe.size = %d, want 64", cfg.Dedupe.Size)
	}

	if cfg.Location().String() != "Asia/Tokyo" {
		t.Errorf("location = %v", cfg.Location())
	}

	// Logging
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("logging.format = %q, want %q", cfg.Logging.Format, "text")
	}

	if ch, ok := cfg.Channel("line"); !ok || ch.Token != "line-token" {
		t.Errorf("Channel(line) = %+v, %v", ch, ok)
	}
	if _, ok := cfg.Channel("absent"); ok {
		t.Error("Channel(absent) should not be found")
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal YAML; everything should get defaults
	cfg, err := Load(writeTemp(t, "{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default server.host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default server.port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Model != "gemini-3-flash-preview" {
		t.Errorf("default llm = %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("default llm.timeout = %v, want %v", cfg.LLM.Timeout, 30*time.Second)
	}
	if cfg.Calendar.Backend != "memory" || cfg.Expense.Backend != "sqlite" {
		t.Errorf("default backends = %q/%q", cfg.Calendar.Backend, cfg.Expense.Backend)
	}
	if cfg.Calendar.ListWindow != 30*24*time.Hour {
		t.Errorf("default calendar.list_window = %v", cfg.Calendar.ListWindow)
	}
	if cfg.Expense.Template != "Template" {
		t.Errorf("default expense.template = %q", cfg.Expense.Template)
	}
	if cfg.Store.Capacity != 1000 {
		t.Errorf("default store.capacity = %d, want %d", cfg.Store.Capacity, 1000)
	}
	if cfg.Dedupe.Size != 2048 {
		t.Errorf("default dedupe.size = %d, want 2048", cfg.Dedupe.Size)
	}
	if cfg.Timezone != "Asia/Taipei" {
		t.Errorf("default timezone = %q", cfg.Timezone)
	}
	if cfg.Router.Default != "calendar" {
		t.Errorf("default router.default = %q", cfg.Router.Default)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default logging.level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTemp(t, "{{{{not yaml"))
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 99999\n"},
		{"channel missing name", "channels:\n  - type: dummy\n"},
		{"channel missing type", "channels:\n  - name: dev\n"},
		{"line without secret", "channels:\n  - name: line\n    type: line\n"},
		{"unknown calendar backend", "calendar:\n  backend: outlook\n"},
		{"unknown expense backend", "expense:\n  backend: excel\n"},
		{"sheets without id", "expense:\n  backend: sheets\n"},
		{"bad router default", "router:\n  default: weather\n"},
		{"bad timezone", "timezone: Mars/Olympus\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeTemp(t, tt.yaml)); err == nil {
				t.Fatalf("expected validation error for %s, got nil", tt.name)
			}
		})
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "gk-secret")
	t.Setenv("TEST_LINE_SECRET", "line-secret-123")
	t.Setenv("TEST_LINE_TOKEN", "line-token-456")
	t.Setenv("TEST_TARGET", "Cabc")

	yaml := `
llm:
  api_key: "${TEST_GEMINI_KEY}"
channels:
  - name: line
    type: line
    secret: "${TEST_LINE_SECRET}"
    token: "${TEST_LINE_TOKEN}"
report:
  target: "${TEST_TARGET}"
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.APIKey != "gk-secret" {
		t.Errorf("llm.api_key = %q, want %q", cfg.LLM.APIKey, "gk-secret")
	}
	if cfg.Channels[0].Secret != "line-secret-123" {
		t.Errorf("channels[0].secret = %q", cfg.Channels[0].Secret)
	}
	if cfg.Channels[0].Token != "line-token-456" {
		t.Errorf("channels[0].token = %q", cfg.Channels[0].Token)
	}
	if cfg.Report.Target != "Cabc" {
		t.Errorf("report.target = %q", cfg.Report.Target)
	}
}
