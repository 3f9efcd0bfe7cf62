// Package config handles loading and saving xogen configuration.
//
// Configuration lives in a TOML file under the XDG config directory. YAML is
// accepted too when the file name ends in .yaml or .yml. Each entry under
// llms describes one provider; its type selects the backend and defaults to
// the entry name.
//
// Example TOML configuration:
//
//	default_provider = "ollama"
//	request_timeout_seconds = 60
//
//	[llms.ollama]
//	base_url = "http://localhost:11434"
//	model = "llama3.2"
//
//	[llms.fast]
//	type = "groq"
//	model = "llama-3.1-8b-instant"
//
//	[llms.mock]
//	completions = ["yes", "no"]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	appName         = "xogen"
	configFileName  = "config.toml"
	DefaultDirPerm  = 0750
	DefaultFilePerm = 0600

	// DefaultTimeoutSeconds applies when RequestTimeoutSeconds is not positive.
	DefaultTimeoutSeconds = 60
)

// Known backend types.
const (
	TypeOllama = "ollama"
	TypeGroq   = "groq"
	TypeOpenAI = "openai"
	TypeGemini = "gemini"
	TypeClaude = "claude"
	TypeMock   = "mock"
)

var knownTypes = []string{TypeClaude, TypeGemini, TypeGroq, TypeMock, TypeOllama, TypeOpenAI}

// Config holds the application's configuration.
type Config struct {
	// DefaultProvider names the entry in LLMs used when none is given.
	DefaultProvider string `toml:"default_provider" yaml:"default_provider"`

	// RequestTimeoutSeconds bounds each backend HTTP request.
	// If <= 0, DefaultTimeoutSeconds is used.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds" yaml:"request_timeout_seconds"`

	// LLMs contains provider configurations keyed by entry name.
	LLMs map[string]LLMConfig `toml:"llms" yaml:"llms"`
}

// LLMConfig holds configuration for one provider entry.
type LLMConfig struct {
	// Type selects the backend. Empty means the entry name is the type.
	Type string `toml:"type,omitempty" yaml:"type,omitempty"`

	// BaseURL overrides the backend endpoint.
	// Example: "http://localhost:11434"
	BaseURL string `toml:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey authenticates against hosted backends. When empty the
	// provider's environment variable is consulted.
	APIKey string `toml:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model overrides the provider's default model.
	Model string `toml:"model,omitempty" yaml:"model,omitempty"`

	// Completions are the canned outputs of the mock type.
	Completions []string `toml:"completions,omitempty" yaml:"completions,omitempty"`
}

// BackendType returns the backend type for the entry called name.
func (l LLMConfig) BackendType(name string) string {
	if l.Type != "" {
		return strings.ToLower(l.Type)
	}
	return strings.ToLower(name)
}

func defaultConfig() Config {
	return Config{
		DefaultProvider:       TypeOllama,
		RequestTimeoutSeconds: DefaultTimeoutSeconds,
		LLMs: map[string]LLMConfig{
			TypeOllama: {BaseURL: "http://localhost:11434"},
		},
	}
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return defaultConfig()
}

// GetConfigFilePath returns $XDG_CONFIG_HOME/xogen/config.toml, falling back
// to $HOME/.config/xogen/config.toml. The file may not exist.
func GetConfigFilePath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine user home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, appName, configFileName), nil
}

// Load reads the configuration from the XDG path. A missing file yields the
// defaults.
func Load(debugMode bool) (Config, error) {
	cfgPath, err := GetConfigFilePath()
	if err != nil {
		return Config{}, fmt.Errorf("failed to determine config path: %w", err)
	}

	if _, err := os.Stat(cfgPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if debugMode {
				slog.Debug("configuration file not found, using defaults", "path", cfgPath)
			}
			return defaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to access config file %s: %w", cfgPath, err)
	}

	if debugMode {
		slog.Debug("loading configuration", "path", cfgPath)
	}
	return LoadFromFile(cfgPath)
}

// LoadFromFile loads configuration from filePath over the defaults and
// validates it. The format follows the file extension.
func LoadFromFile(filePath string) (Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("configuration file not found at %s", filePath)
		}
		return Config{}, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	// An llms table in the file replaces the default providers, so the
	// defaults are applied only to what the file leaves unset.
	cfg := defaultConfig()
	cfg.DefaultProvider = ""
	cfg.LLMs = nil
	if isYAML(filePath) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode YAML config file %s: %w", filePath, err)
		}
	} else {
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to decode TOML config file %s: %w", filePath, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			slog.Warn("unknown configuration keys", "path", filePath, "keys", keys)
		}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration in %s: %w", filePath, err)
	}
	return cfg, nil
}

// applyDefaults fills what a decoded file left unset. Without an llms table
// the default providers and default provider apply; with one, a single entry
// becomes the default provider.
func applyDefaults(cfg *Config) {
	defaults := defaultConfig()
	if len(cfg.LLMs) == 0 {
		cfg.LLMs = defaults.LLMs
		if cfg.DefaultProvider == "" {
			cfg.DefaultProvider = defaults.DefaultProvider
		}
		return
	}
	if cfg.DefaultProvider == "" && len(cfg.LLMs) == 1 {
		for name := range cfg.LLMs {
			cfg.DefaultProvider = name
		}
	}
}

// Save writes cfg to filePath, creating parent directories as needed.
func Save(filePath string, cfg Config) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if isYAML(filePath) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode configuration to YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode configuration to YAML: %w", err)
		}
	} else if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration to TOML: %w", err)
	}

	if err := os.WriteFile(filePath, buf.Bytes(), DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}
	return nil
}

// Validate checks that the default provider is configured, every entry has a
// known type and base URLs parse.
func (c Config) Validate() error {
	if len(c.LLMs) == 0 {
		return errors.New("at least one LLM provider must be configured")
	}
	if c.DefaultProvider != "" {
		if _, exists := c.LLMs[c.DefaultProvider]; !exists {
			return fmt.Errorf("default provider '%s' is specified but has no configuration section in [llms]", c.DefaultProvider)
		}
	}

	names := make([]string, 0, len(c.LLMs))
	for name := range c.LLMs {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		llm := c.LLMs[name]
		typ := llm.BackendType(name)
		if !isKnownType(typ) {
			errs = append(errs, fmt.Errorf("provider '%s': unsupported type '%s' (supported: %s)", name, typ, strings.Join(knownTypes, ", ")))
		}
		if llm.BaseURL != "" {
			if err := validateBaseURL(llm.BaseURL); err != nil {
				errs = append(errs, fmt.Errorf("provider '%s': %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// TimeoutSeconds returns the effective request timeout.
func (c Config) TimeoutSeconds() int {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return c.RequestTimeoutSeconds
}

// GetLLMConfig retrieves the configuration for a given entry.
func (c *Config) GetLLMConfig(provider string) (LLMConfig, bool) {
	llmCfg, exists := c.LLMs[provider]
	return llmCfg, exists
}

// NewConfig creates a configuration programmatically, without file I/O.
//
//	cfg := config.NewConfig("gemini", 30, map[string]config.LLMConfig{
//		"gemini": {APIKey: "your-key", Model: "gemini-1.5-flash"},
//		"ollama": {BaseURL: "http://localhost:11434"},
//	})
func NewConfig(defaultProvider string, timeoutSeconds int, providers map[string]LLMConfig) Config {
	return Config{
		DefaultProvider:       defaultProvider,
		RequestTimeoutSeconds: timeoutSeconds,
		LLMs:                  providers,
	}
}

func validateBaseURL(rawURL string) error {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", rawURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", rawURL)
	}
	return nil
}

func isKnownType(t string) bool {
	for _, k := range knownTypes {
		if k == t {
			return true
		}
	}
	return false
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
