// Package config loads the YAML configuration. Environment variables are
// expanded in the raw bytes before parsing, so values like
// api_key: ${OPENROUTER_API_KEY} work; a missing file yields the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Bus       BusConfig       `yaml:"bus"`
	Storage   StorageConfig   `yaml:"storage"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Tools     ToolsConfig     `yaml:"tools"`
	MCP       MCPConfig       `yaml:"mcp"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// LLMConfig selects the chat provider. An empty APIKey disables the LLM;
// the runtime then echoes input.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	TimeoutS int    `yaml:"timeout_s"`
}

// Timeout returns the request timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}

// BusConfig selects the event bus. Empty RedisAddr means the in-process
// bus; setting it moves events onto Redis pub/sub so other processes can
// produce and consume them.
type BusConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// StorageConfig locates the database and its retention policy.
type StorageConfig struct {
	Path      string          `yaml:"path"`
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig prunes old audit rows.
type RetentionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Cron     string `yaml:"cron"`
	KeepDays int    `yaml:"keep_days"`
}

// WorkspaceConfig roots the filesystem sandbox.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// SchedulerConfig drives the task tick loop.
type SchedulerConfig struct {
	IntervalS int    `yaml:"interval_s"`
	SessionID string `yaml:"session_id"`
}

// Interval returns the poll interval as a duration.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalS) * time.Second
}

// ToolsConfig carries the policy lists and per-tool settings.
type ToolsConfig struct {
	Deny      []string        `yaml:"deny"`
	Confirm   []string        `yaml:"confirm"`
	WebSearch WebSearchConfig `yaml:"web_search"`
}

// WebSearchConfig selects the search provider.
type WebSearchConfig struct {
	Provider         string `yaml:"provider"`
	BraveAPIKey      string `yaml:"brave_api_key"`
	PerplexityAPIKey string `yaml:"perplexity_api_key"`
	PerplexityModel  string `yaml:"perplexity_model"`
	MaxResults       int    `yaml:"max_results"`
}

// MCPConfig points at the servers document.
type MCPConfig struct {
	ConfigPath string `yaml:"config_path"`
}

// PromptsConfig locates the system prompt files.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig exposes /metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
	Insecure   bool    `yaml:"insecure"`
}

// Default returns the configuration used when no file exists. API keys come
// from the conventional environment variables.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		LLM: LLMConfig{
			Provider: "openrouter",
			APIKey:   llmKeyFromEnv("openrouter"),
			TimeoutS: 30,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dataDir, "steward.db"),
			Retention: RetentionConfig{
				Cron:     "0 3 * * *",
				KeepDays: 30,
			},
		},
		Workspace: WorkspaceConfig{Root: filepath.Join(dataDir, "workspace")},
		Scheduler: SchedulerConfig{IntervalS: 30, SessionID: "scheduler"},
		Tools: ToolsConfig{
			WebSearch: WebSearchConfig{
				Provider:         "auto",
				BraveAPIKey:      os.Getenv("BRAVE_SEARCH_API_KEY"),
				PerplexityAPIKey: os.Getenv("PERPLEXITY_API_KEY"),
			},
		},
		MCP:     MCPConfig{ConfigPath: filepath.Join(dataDir, "mcp.json")},
		Prompts: PromptsConfig{Dir: filepath.Join(dataDir, "prompts")},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{SampleRate: 1.0},
	}
}

// Load reads the config file at path, or the defaults when it does not
// exist. An empty path always returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = llmKeyFromEnv(cfg.LLM.Provider)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the wiring cannot honor.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LLM.Provider)) {
	case "", "openrouter", "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.TimeoutS < 0 {
		return fmt.Errorf("config: llm timeout_s must not be negative")
	}
	if c.Scheduler.IntervalS <= 0 {
		return fmt.Errorf("config: scheduler interval_s must be positive")
	}
	if c.Scheduler.SessionID == "" {
		return fmt.Errorf("config: scheduler session_id is required")
	}
	if c.Storage.Retention.Enabled && c.Storage.Retention.KeepDays <= 0 {
		return fmt.Errorf("config: retention keep_days must be positive")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("config: tracing sample_rate must be in [0, 1]")
	}
	return nil
}

// llmKeyFromEnv maps a provider to its conventional key variable.
func llmKeyFromEnv(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("OPENROUTER_API_KEY")
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("STEWARD_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".steward"
	}
	return filepath.Join(home, ".steward")
}
