// Package config loads uiforge configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/uiforge/uiforge/internal/brain"
)

// EnvPrefix prefixes every environment override, e.g. UIFORGE_LLM_MODEL.
const EnvPrefix = "UIFORGE"

// Config holds the complete application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // groq, openai, anthropic, ollama
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GenerationConfig controls how model output is accepted.
type GenerationConfig struct {
	Strict          bool     `mapstructure:"strict"`
	MaxPromptLength int      `mapstructure:"max_prompt_length"`
	Blocklist       []string `mapstructure:"blocklist"` // phrases that reject a prompt
}

// RateLimitConfig bounds planner requests per client.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DiagnosticsConfig configures the generation log.
type DiagnosticsConfig struct {
	Path   string `mapstructure:"path"`
	Retain int    `mapstructure:"retain"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:8787"},
		LLM: LLMConfig{
			Provider:    "groq",
			Temperature: 0,
			MaxTokens:   600,
			Timeout:     60 * time.Second,
		},
		Generation: GenerationConfig{
			Strict:          false,
			MaxPromptLength: 4000,
		},
		RateLimit:   RateLimitConfig{RPS: 1, Burst: 3},
		Diagnostics: DiagnosticsConfig{Path: ":memory:", Retain: 500},
		Log:         LogConfig{Level: "info", Format: "json"},
	}
}

// providerKeyEnv maps a provider to its conventional API key variable.
var providerKeyEnv = map[string]string{
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// Load reads configuration. An empty configPath searches ./uiforge.yaml and
// $HOME/.config/uiforge/uiforge.yaml; a missing file there is not an error.
// An explicit configPath must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("uiforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/uiforge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if len(cfg.Generation.Blocklist) == 0 {
		cfg.Generation.Blocklist = nil
	}
	if cfg.LLM.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.LLM.Provider]; ok {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !brain.KnownProvider(c.LLM.Provider) {
		return fmt.Errorf("invalid llm.provider %q (must be groq, openai, anthropic or ollama)", c.LLM.Provider)
	}
	if brain.RequiresAPIKey(c.LLM.Provider) && strings.TrimSpace(c.LLM.APIKey) == "" {
		hint := "llm.api_key"
		if env, ok := providerKeyEnv[c.LLM.Provider]; ok {
			hint += " or " + env
		}
		return fmt.Errorf("llm provider %q needs an API key (set %s)", c.LLM.Provider, hint)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature %v out of range [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.Generation.MaxPromptLength <= 0 {
		return fmt.Errorf("generation.max_prompt_length must be positive")
	}
	if c.Diagnostics.Retain < 0 {
		return fmt.Errorf("diagnostics.retain must not be negative")
	}
	return nil
}

// ProviderConfig converts the LLM section for brain.NewProvider.
func (c *Config) ProviderConfig() brain.ProviderConfig {
	model := c.LLM.Model
	if model == "" {
		model = brain.DefaultModel(c.LLM.Provider)
	}
	return brain.ProviderConfig{
		Name:    c.LLM.Provider,
		BaseURL: c.LLM.BaseURL,
		APIKey:  c.LLM.APIKey,
		Model:   model,
		Timeout: c.LLM.Timeout,
	}
}

// SaveToFile writes the configuration as YAML. The API key is omitted so a
// shared config file never carries credentials.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	v := viper.New()
	v.Set("server.addr", c.Server.Addr)
	v.Set("llm.provider", c.LLM.Provider)
	v.Set("llm.base_url", c.LLM.BaseURL)
	v.Set("llm.model", c.LLM.Model)
	v.Set("llm.temperature", c.LLM.Temperature)
	v.Set("llm.max_tokens", c.LLM.MaxTokens)
	v.Set("llm.timeout", c.LLM.Timeout.String())
	v.Set("generation.strict", c.Generation.Strict)
	v.Set("generation.max_prompt_length", c.Generation.MaxPromptLength)
	v.Set("generation.blocklist", c.Generation.Blocklist)
	v.Set("ratelimit.rps", c.RateLimit.RPS)
	v.Set("ratelimit.burst", c.RateLimit.Burst)
	v.Set("diagnostics.path", c.Diagnostics.Path)
	v.Set("diagnostics.retain", c.Diagnostics.Retain)
	v.Set("log.level", c.Log.Level)
	v.Set("log.format", c.Log.Format)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}

// DefaultPath returns $HOME/.config/uiforge/uiforge.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "uiforge", "uiforge.yaml")
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("generation.strict", d.Generation.Strict)
	v.SetDefault("generation.max_prompt_length", d.Generation.MaxPromptLength)
	v.SetDefault("generation.blocklist", []string{})
	v.SetDefault("ratelimit.rps", d.RateLimit.RPS)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
	v.SetDefault("diagnostics.path", d.Diagnostics.Path)
	v.SetDefault("diagnostics.retain", d.Diagnostics.Retain)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
