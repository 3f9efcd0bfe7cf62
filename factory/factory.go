// Package factory builds providers from configuration.
package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"

	"github.com/xostack/xogen"
	"github.com/xostack/xogen/claude"
	"github.com/xostack/xogen/config"
	"github.com/xostack/xogen/gemini"
	"github.com/xostack/xogen/groq"
	"github.com/xostack/xogen/mock"
	"github.com/xostack/xogen/ollama"
	"github.com/xostack/xogen/openai"
	"github.com/xostack/xogen/registry"
)

// Environment variables consulted when an entry has no api_key.
const (
	GroqAPIKeyEnv      = "GROQ_API_KEY"
	OpenAIAPIKeyEnv    = "OPENAI_API_KEY"
	GeminiAPIKeyEnv    = "GEMINI_API_KEY"
	AnthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
)

// New builds the provider for the configuration entry called name. The
// provider is not initialized.
func New(name string, llmCfg config.LLMConfig, timeoutSeconds int, debugMode bool) (xogen.Provider, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = config.DefaultTimeoutSeconds
	}

	switch typ := llmCfg.BackendType(name); typ {
	case config.TypeOllama:
		if llmCfg.BaseURL == "" {
			return nil, xogen.ConfigErrorf(name, "base URL for Ollama not found in configuration")
		}
		c, err := ollama.NewClient(llmCfg.BaseURL, llmCfg.Model, timeoutSeconds, debugMode)
		return wrap(name, c, err)

	case config.TypeGroq:
		apiKey := apiKeyOr(llmCfg.APIKey, GroqAPIKeyEnv)
		if apiKey == "" {
			return nil, xogen.ConfigErrorf(name, "API key for Groq not found in configuration or %s", GroqAPIKeyEnv)
		}
		var opts []groq.Option
		if llmCfg.BaseURL != "" {
			opts = append(opts, groq.WithBaseURL(llmCfg.BaseURL))
		}
		c, err := groq.NewClient(apiKey, llmCfg.Model, timeoutSeconds, debugMode, opts...)
		return wrap(name, c, err)

	case config.TypeOpenAI:
		apiKey := apiKeyOr(llmCfg.APIKey, OpenAIAPIKeyEnv)
		if apiKey == "" {
			return nil, xogen.ConfigErrorf(name, "API key for OpenAI not found in configuration or %s", OpenAIAPIKeyEnv)
		}
		var opts []openai.Option
		if llmCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmCfg.BaseURL))
		}
		c, err := openai.NewClient(apiKey, llmCfg.Model, timeoutSeconds, debugMode, opts...)
		return wrap(name, c, err)

	case config.TypeGemini:
		apiKey := apiKeyOr(llmCfg.APIKey, GeminiAPIKeyEnv)
		if apiKey == "" {
			return nil, xogen.ConfigErrorf(name, "API key for Gemini not found in configuration or %s", GeminiAPIKeyEnv)
		}
		var opts []gemini.Option
		if llmCfg.BaseURL != "" {
			opts = append(opts, gemini.WithClientOptions(option.WithEndpoint(llmCfg.BaseURL)))
		}
		c, err := gemini.NewClient(apiKey, llmCfg.Model, timeoutSeconds, debugMode, opts...)
		return wrap(name, c, err)

	case config.TypeClaude:
		// claude.NewClient falls back to ANTHROPIC_API_KEY itself.
		var opts []claude.Option
		if llmCfg.BaseURL != "" {
			opts = append(opts, claude.WithBaseURL(llmCfg.BaseURL))
		}
		c, err := claude.NewClient(llmCfg.APIKey, llmCfg.Model, timeoutSeconds, debugMode, opts...)
		return wrap(name, c, err)

	case config.TypeMock:
		model := llmCfg.Model
		if model == "" {
			model = "mock-model"
		}
		return mock.New(mock.Config{
			ID:          "mock:" + model,
			Name:        "Mock (" + name + ")",
			Model:       model,
			Completions: llmCfg.Completions,
			Tokenize:    true,
			Logprob:     -1,
		}), nil

	default:
		return nil, xogen.ConfigErrorf(name, "unsupported LLM provider type: %s", typ)
	}
}

// GetProvider builds the provider named by cfg.DefaultProvider.
//
// Making it a variable allows tests to substitute a double.
var GetProvider = func(cfg config.Config, debugMode bool) (xogen.Provider, error) {
	providerName := cfg.DefaultProvider
	if providerName == "" {
		return nil, xogen.ConfigErrorf("", "no default LLM provider specified in configuration")
	}

	llmCfg, exists := cfg.LLMs[providerName]
	if !exists {
		return nil, xogen.ConfigErrorf("", "configuration for provider '%s' not found", providerName)
	}
	return New(providerName, llmCfg, cfg.TimeoutSeconds(), debugMode)
}

// BuildRegistry registers a provider for every configured entry and returns
// the registry with a map from entry name to provider ID. Entries that cannot
// be built are logged and skipped; an error is returned only when none could.
func BuildRegistry(cfg config.Config, debugMode bool) (*registry.Registry, map[string]string, error) {
	logger := slog.Default()
	if !debugMode {
		logger = nil
	}
	reg := registry.New(logger)
	ids := make(map[string]string, len(cfg.LLMs))

	var buildErrs []error
	for name, llmCfg := range cfg.LLMs {
		p, err := New(name, llmCfg, cfg.TimeoutSeconds(), debugMode)
		if err == nil {
			err = reg.Register(p)
		}
		if err != nil {
			slog.Warn("skipping provider", "name", name, "error", err)
			buildErrs = append(buildErrs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		ids[name] = p.ID()
	}

	if len(ids) == 0 && len(buildErrs) > 0 {
		return nil, nil, fmt.Errorf("no provider could be built: %w", errors.Join(buildErrs...))
	}
	return reg, ids, nil
}

// Initialize builds the default provider and initializes it.
func Initialize(ctx context.Context, cfg config.Config, debugMode bool) (xogen.Provider, error) {
	p, err := GetProvider(cfg, debugMode)
	if err != nil {
		return nil, err
	}
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func apiKeyOr(key, env string) string {
	if key != "" {
		return key
	}
	return os.Getenv(env)
}

func wrap[P xogen.Provider](name string, p P, err error) (xogen.Provider, error) {
	if err != nil {
		return nil, xogen.ConfigError(name, err)
	}
	return p, nil
}
