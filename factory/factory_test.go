package factory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xostack/xogen"
	"github.com/xostack/xogen/config"
	"github.com/xostack/xogen/factory"
	"github.com/xostack/xogen/mock"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, env := range []string{factory.GroqAPIKeyEnv, factory.OpenAIAPIKeyEnv, factory.GeminiAPIKeyEnv, factory.AnthropicAPIKeyEnv} {
		t.Setenv(env, "")
	}
}

func TestNew(t *testing.T) {
	clearKeys(t)

	tests := []struct {
		name   string
		entry  string
		cfg    config.LLMConfig
		wantID string
	}{
		{"ollama", "ollama", config.LLMConfig{BaseURL: "http://localhost:11434", Model: "llama3.2"}, "ollama:llama3.2"},
		{"groq", "groq", config.LLMConfig{APIKey: "k", Model: "llama-3.1-8b-instant"}, "groq:llama-3.1-8b-instant"},
		{"openai", "openai", config.LLMConfig{APIKey: "k", Model: "davinci-002"}, "openai:davinci-002"},
		{"gemini", "gemini", config.LLMConfig{APIKey: "k", Model: "gemini-1.5-flash"}, "gemini:gemini-1.5-flash"},
		{"claude", "claude", config.LLMConfig{APIKey: "k", Model: "claude-3-5-haiku-latest"}, "claude:claude-3-5-haiku-latest"},
		{"mock", "mock", config.LLMConfig{Model: "m"}, "mock:m"},
		{"typed entry", "fast", config.LLMConfig{Type: "groq", APIKey: "k", Model: "x"}, "groq:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := factory.New(tt.entry, tt.cfg, 30, false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID())
			assert.NotEmpty(t, p.Name())
		})
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	clearKeys(t)

	for _, entry := range []string{"groq", "openai", "gemini", "claude"} {
		t.Run(entry, func(t *testing.T) {
			_, err := factory.New(entry, config.LLMConfig{}, 30, false)
			require.Error(t, err)
			assert.ErrorIs(t, err, xogen.ErrConfig)
		})
	}

	_, err := factory.New("ollama", config.LLMConfig{}, 30, false)
	assert.ErrorIs(t, err, xogen.ErrConfig)

	_, err = factory.New("local", config.LLMConfig{}, 30, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider type")
}

func TestNew_EnvironmentKeys(t *testing.T) {
	clearKeys(t)
	t.Setenv(factory.GroqAPIKeyEnv, "from-env")
	t.Setenv(factory.AnthropicAPIKeyEnv, "from-env")

	_, err := factory.New("groq", config.LLMConfig{}, 30, false)
	assert.NoError(t, err)
	_, err = factory.New("claude", config.LLMConfig{}, 30, false)
	assert.NoError(t, err)
}

func TestGetProvider(t *testing.T) {
	t.Run("no default", func(t *testing.T) {
		_, err := factory.GetProvider(config.Config{}, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no default LLM provider")
	})

	t.Run("default not configured", func(t *testing.T) {
		_, err := factory.GetProvider(config.NewConfig("groq", 10, map[string]config.LLMConfig{}), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration for provider 'groq' not found")
	})

	t.Run("mock default", func(t *testing.T) {
		cfg := config.NewConfig("canned", 10, map[string]config.LLMConfig{
			"canned": {Type: "mock", Completions: []string{"yes"}},
		})
		p, err := factory.GetProvider(cfg, false)
		require.NoError(t, err)

		gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "ok?", N: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"yes", "yes"}, gen.Texts())
	})
}

func TestGetProvider_Substitutable(t *testing.T) {
	original := factory.GetProvider
	t.Cleanup(func() { factory.GetProvider = original })

	double := mock.New(mock.Config{ID: "double"})
	factory.GetProvider = func(config.Config, bool) (xogen.Provider, error) { return double, nil }

	p, err := factory.Initialize(context.Background(), config.Config{}, false)
	require.NoError(t, err)
	assert.Equal(t, "double", p.ID())
	assert.True(t, double.Initialized())
}

func TestBuildRegistry(t *testing.T) {
	clearKeys(t)

	cfg := config.NewConfig("a", 10, map[string]config.LLMConfig{
		"a":    {Type: "mock", Model: "alpha"},
		"b":    {Type: "mock", Model: "beta"},
		"groq": {},
	})

	reg, ids, err := factory.BuildRegistry(cfg, false)
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, map[string]string{"a": "mock:alpha", "b": "mock:beta"}, ids)
	assert.Equal(t, []string{"mock:alpha", "mock:beta"}, reg.IDs())

	require.NoError(t, reg.InitializeAll(context.Background()))
	gen, err := reg.Generate(context.Background(), ids["b"], xogen.Request{Prompt: "hi", N: 1})
	require.NoError(t, err)
	assert.Equal(t, "beta", gen.Model)
}

func TestBuildRegistry_NothingBuilt(t *testing.T) {
	clearKeys(t)

	_, _, err := factory.BuildRegistry(config.NewConfig("", 10, map[string]config.LLMConfig{"groq": {}}), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, xogen.ErrConfig)
}
