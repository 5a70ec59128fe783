package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // timezone lookups must not depend on the host

	"gopkg.in/yaml.v3"
)

// Config is the top-level assistant configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	LLM      LLMConfig       `yaml:"llm"`
	Channels []ChannelConfig `yaml:"channels"`
	Prompts  PromptsConfig   `yaml:"prompts"`
	Router   RouterConfig    `yaml:"router"`
	Calendar CalendarConfig  `yaml:"calendar"`
	Expense  ExpenseConfig   `yaml:"expense"`
	Store    StoreConfig     `yaml:"store"`
	Dedupe   DedupeConfig    `yaml:"dedupe"`
	Report   ReportConfig    `yaml:"report"`
	Timezone string          `yaml:"timezone"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LLMConfig holds language model connection settings.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

// ChannelConfig describes a single messaging channel.
type ChannelConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	// Secret verifies inbound webhook signatures.
	Secret string `yaml:"secret"`
	// Token authorizes outbound reply and push calls.
	Token string `yaml:"token"`
	// WakeWord must prefix group and room messages for them to be handled.
	WakeWord string `yaml:"wake_word"`
	APIBase  string `yaml:"api_base"`
}

// PromptsConfig lists directories whose templates override the built-in ones.
type PromptsConfig struct {
	Dirs []string `yaml:"dirs"`
}

// RouterConfig controls intent pre-classification.
type RouterConfig struct {
	Enabled bool `yaml:"enabled"`
	// Default is the domain used when the router is disabled.
	Default string `yaml:"default"`
}

// CalendarConfig selects and configures the calendar backend.
type CalendarConfig struct {
	Backend         string        `yaml:"backend"`
	CalendarID      string        `yaml:"calendar_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	ListWindow      time.Duration `yaml:"list_window"`
}

// ExpenseConfig selects and configures the expense ledger.
type ExpenseConfig struct {
	Backend         string `yaml:"backend"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
	// Template is the partition copied when a month has none yet.
	Template string `yaml:"template"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// StoreConfig holds handled-event store settings.
type StoreConfig struct {
	Capacity int `yaml:"capacity"`
}

// DedupeConfig bounds the memory of recently seen deliveries.
type DedupeConfig struct {
	Size int `yaml:"size"`
}

// ReportConfig sets where scheduled digests are pushed.
type ReportConfig struct {
	Channel string `yaml:"channel"`
	Target  string `yaml:"target"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// defaults applies sane defaults to zero-valued fields.
func (c *Config) defaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.Model == "" && c.LLM.Provider == "gemini" {
		c.LLM.Model = "gemini-3-flash-preview"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	for i := range c.Channels {
		if c.Channels[i].Type == "line" && c.Channels[i].APIBase == "" {
			c.Channels[i].APIBase = "https://api.line.me"
		}
	}
	if c.Router.Default == "" {
		c.Router.Default = "calendar"
	}
	if c.Calendar.Backend == "" {
		c.Calendar.Backend = "memory"
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
	if c.Calendar.ListWindow == 0 {
		c.Calendar.ListWindow = 30 * 24 * time.Hour
	}
	if c.Expense.Backend == "" {
		c.Expense.Backend = "sqlite"
	}
	if c.Expense.Template == "" {
		c.Expense.Template = "Template"
	}
	if c.Expense.Path == "" {
		c.Expense.Path = "expenses.db"
	}
	if c.Store.Capacity == 0 {
		c.Store.Capacity = 1000
	}
	if c.Dedupe.Size == 0 {
		c.Dedupe.Size = 2048
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Taipei"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// validate checks required fields and value constraints.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must be non-negative")
	}
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d].name is required", i)
		}
		if ch.Type == "" {
			return fmt.Errorf("channels[%d].type is required", i)
		}
		if ch.Type == "line" && ch.Secret == "" {
			return fmt.Errorf("channels[%d].secret is required for line channels", i)
		}
	}
	switch c.Router.Default {
	case "calendar", "expense":
	default:
		return fmt.Errorf("router.default must be calendar or expense, got %q", c.Router.Default)
	}
	switch c.Calendar.Backend {
	case "memory":
	case "google":
		if c.Calendar.CalendarID == "" {
			return fmt.Errorf("calendar.calendar_id is required for the google backend")
		}
	default:
		return fmt.Errorf("calendar.backend must be memory or google, got %q", c.Calendar.Backend)
	}
	if c.Calendar.ListWindow < 0 {
		return fmt.Errorf("calendar.list_window must be non-negative")
	}
	switch c.Expense.Backend {
	case "sqlite":
	case "sheets":
		if c.Expense.SpreadsheetID == "" {
			return fmt.Errorf("expense.spreadsheet_id is required for the sheets backend")
		}
	default:
		return fmt.Errorf("expense.backend must be sqlite or sheets, got %q", c.Expense.Backend)
	}
	if c.Store.Capacity < 0 {
		return fmt.Errorf("store.capacity must be non-negative")
	}
	if c.Dedupe.Size < 0 {
		return fmt.Errorf("dedupe.size must be non-negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// expandEnv replaces ${VAR} references in secret-bearing fields with
// environment variable values. This allows keeping secrets out of YAML.
func (c *Config) expandEnv() {
	c.LLM.APIKey = os.ExpandEnv(c.LLM.APIKey)
	for i := range c.Channels {
		c.Channels[i].Secret = os.ExpandEnv(c.Channels[i].Secret)
		c.Channels[i].Token = os.ExpandEnv(c.Channels[i].Token)
	}
	c.Calendar.CalendarID = os.ExpandEnv(c.Calendar.CalendarID)
	c.Expense.SpreadsheetID = os.ExpandEnv(c.Expense.SpreadsheetID)
	c.Report.Target = os.ExpandEnv(c.Report.Target)
}

// Location returns the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Channel returns the channel config with the given name.
func (c *Config) Channel(name string) (ChannelConfig, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return ChannelConfig{}, false
}

// Load reads a YAML config file, applies defaults, expands env vars, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.defaults()
	cfg.expandEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
