package mock_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xostack/xogen"
	"github.com/xostack/xogen/mock"
)

func TestEchoScenario(t *testing.T) {
	p := mock.New(mock.Config{ID: "echo", Model: "echo-1", Completions: []string{"a", "b", "c"}})
	require.NoError(t, p.Initialize(context.Background()))

	gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "hello", Temperature: 0, N: 3})
	require.NoError(t, err)

	assert.Equal(t, "hello", gen.Prompt.Text)
	assert.Len(t, gen.Completions, 3)
	assert.Equal(t, "echo", gen.Provider)
	assert.Equal(t, "echo-1", gen.Model)
	assert.Equal(t, []string{"a", "b", "c"}, gen.Texts())
}

func TestGenerate_ExactlyN(t *testing.T) {
	p := mock.New(mock.Config{Completions: []string{"x", "y"}})
	for n := 1; n <= 7; n++ {
		gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "p", N: n})
		require.NoError(t, err)
		assert.Len(t, gen.Completions, n)
	}
}

func TestGenerate_EchoesPromptWithoutCompletions(t *testing.T) {
	p := mock.New(mock.Config{})
	gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "same", N: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "same"}, gen.Texts())
}

func TestFailingInitializeScenario(t *testing.T) {
	p := mock.New(mock.Config{ID: "broken", InitErr: errors.New("model artifact missing"), RequireInit: true})

	err := p.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, xogen.ErrConfig)
	assert.Contains(t, err.Error(), "model artifact missing")
	assert.False(t, p.Initialized())

	gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "hello", N: 1})
	assert.Nil(t, gen)
	assert.ErrorIs(t, err, xogen.ErrConfig)
}

func TestStopScenario(t *testing.T) {
	p := mock.New(mock.Config{Completions: []string{"The answer is 42.\nQuestion: next"}, Tokenize: true, Logprob: -0.5})

	gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "Q", N: 2, Stop: []string{"\n"}})
	require.NoError(t, err)

	for _, c := range gen.Completions {
		assert.Equal(t, "The answer is 42.", c.Text)
		assert.NotContains(t, c.Text, "Question")
		assert.Equal(t, c.Text, strings.Join(c.Tokens, ""))
		assert.NoError(t, c.Validate())
	}
}

func TestInvalidRequests(t *testing.T) {
	p := mock.New(mock.Config{})

	gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "hello", N: 0})
	assert.Nil(t, gen)
	assert.ErrorIs(t, err, xogen.ErrInvalidRequest)

	gen, err = p.Generate(context.Background(), xogen.Request{Prompt: "", N: 1})
	assert.Nil(t, gen)
	assert.ErrorIs(t, err, xogen.ErrInvalidRequest)
}

func TestTokenize_PromptFirstTokenUnscored(t *testing.T) {
	p := mock.New(mock.Config{Tokenize: true, Logprob: -1.25, Completions: []string{" yes sir"}})

	gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "say it", N: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"say", " it"}, gen.Prompt.Tokens)
	assert.Nil(t, gen.Prompt.Logprobs[0])
	require.NotNil(t, gen.Prompt.Logprobs[1])

	mean, ok := gen.Completions[0].MeanLogprob()
	require.True(t, ok)
	assert.InDelta(t, -1.25, mean, 1e-12)
}

func TestTemperaturePolicy(t *testing.T) {
	reject := mock.New(mock.Config{MaxTemperature: 1})
	_, err := reject.Generate(context.Background(), xogen.Request{Prompt: "p", N: 1, Temperature: 1.5})
	assert.ErrorIs(t, err, xogen.ErrInvalidRequest)

	clamp := mock.New(mock.Config{MaxTemperature: 1, ClampTemperature: true})
	_, err = clamp.Generate(context.Background(), xogen.Request{Prompt: "p", N: 1, Temperature: 1.5})
	assert.NoError(t, err)
}

func TestGenerateErr(t *testing.T) {
	p := mock.New(mock.Config{GenerateErr: errors.New("quota exceeded")})
	_, err := p.Generate(context.Background(), xogen.Request{Prompt: "p", N: 1})
	assert.ErrorIs(t, err, xogen.ErrBackend)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerate_DoesNotMutateRequest(t *testing.T) {
	p := mock.New(mock.Config{Completions: []string{"a|b"}})
	stop := []string{"|"}
	req := xogen.Request{Prompt: "p", N: 1, Stop: stop, MaxTokens: xogen.MaxTokensOf(3)}

	_, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"|"}, stop)
	assert.Equal(t, 3, *req.MaxTokens)

	calls := p.Calls()
	require.Len(t, calls, 1)
	calls[0].Stop[0] = "changed"
	assert.Equal(t, "|", stop[0])
}

func TestConcurrentGenerate(t *testing.T) {
	p := mock.New(mock.Config{Completions: []string{"ok"}, Latency: 10 * time.Millisecond})
	require.NoError(t, p.Initialize(context.Background()))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen, err := p.Generate(context.Background(), xogen.Request{Prompt: "p", N: 2})
			if err == nil && len(gen.Completions) != 2 {
				err = errors.New("wrong completion count")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, p.Calls(), 20)
}

func TestLatencyHonorsCancellation(t *testing.T) {
	p := mock.New(mock.Config{Latency: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, xogen.Request{Prompt: "p", N: 1})
	assert.ErrorIs(t, err, xogen.ErrBackend)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIDStable(t *testing.T) {
	p := mock.New(mock.Config{ID: "stable"})
	assert.Equal(t, "stable", p.ID())
	require.NoError(t, p.Initialize(context.Background()))
	assert.Equal(t, "stable", p.ID())
	assert.Equal(t, 1, p.InitCalls())
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"one", []string{"one"}},
		{"one two", []string{"one", " two"}},
		{"  lead", []string{"  lead"}},
		{"trail ", []string{"trail", " "}},
		{"a\nb", []string{"a", "\nb"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := mock.Split(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, strings.Join(got, ""))
		})
	}
}
