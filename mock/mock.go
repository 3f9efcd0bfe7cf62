// Package mock provides an in-process test double that satisfies
// xogen.Provider without any I/O.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/xostack/xogen"
)

// Config defines the behavior of a Provider.
type Config struct {
	// ID, Name and Model identify the double. ID defaults to "mock" and
	// Model to "mock-model".
	ID    string
	Name  string
	Model string

	// Completions are returned in order, cycling when n exceeds their count.
	// With no completions the prompt itself is echoed back.
	Completions []string

	// Tokenize splits prompt and completions into whitespace-led tokens.
	// Completion tokens are scored with Logprob; the first prompt token is
	// left unscored and the rest get Logprob too.
	Tokenize bool
	Logprob  float64

	// InitErr makes Initialize fail with a configuration error.
	InitErr error
	// GenerateErr makes every Generate fail with a backend error.
	GenerateErr error
	// RequireInit makes Generate fail until Initialize has succeeded.
	RequireInit bool

	// MaxTemperature, when positive, bounds the accepted temperature. Higher
	// values are clamped if ClampTemperature is set and rejected otherwise.
	MaxTemperature   float64
	ClampTemperature bool

	// Latency delays each Generate, honoring context cancellation.
	Latency time.Duration
}

// Provider is a configurable test double. It is safe for concurrent use.
type Provider struct {
	cfg Config

	initialized atomic.Bool
	initCalls   atomic.Int32

	mu    sync.Mutex
	calls []xogen.Request
}

var _ xogen.Provider = (*Provider)(nil)

// New creates a Provider from cfg.
func New(cfg Config) *Provider {
	if cfg.ID == "" {
		cfg.ID = "mock"
	}
	if cfg.Name == "" {
		cfg.Name = "Mock provider"
	}
	if cfg.Model == "" {
		cfg.Model = "mock-model"
	}
	cfg.Completions = append([]string(nil), cfg.Completions...)
	return &Provider{cfg: cfg}
}

// ID returns the configured identifier.
func (p *Provider) ID() string { return p.cfg.ID }

// Name returns the configured display name.
func (p *Provider) Name() string { return p.cfg.Name }

// Initialize fails with InitErr if one is configured.
func (p *Provider) Initialize(ctx context.Context) error {
	p.initCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return xogen.ConfigError(p.cfg.ID, err)
	}
	if p.cfg.InitErr != nil {
		return xogen.ConfigError(p.cfg.ID, p.cfg.InitErr)
	}
	p.initialized.Store(true)
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (p *Provider) Initialized() bool { return p.initialized.Load() }

// InitCalls returns how many times Initialize was called.
func (p *Provider) InitCalls() int { return int(p.initCalls.Load()) }

// Generate returns req.N completions built from the configuration.
func (p *Provider) Generate(ctx context.Context, req xogen.Request) (*xogen.Generation, error) {
	p.record(req)

	if err := xogen.ValidateRequest(p.cfg.ID, req); err != nil {
		return nil, err
	}
	if p.cfg.RequireInit && !p.initialized.Load() {
		return nil, xogen.ConfigErrorf(p.cfg.ID, "mock provider not initialized")
	}
	if limit := p.cfg.MaxTemperature; limit > 0 && req.Temperature > limit && !p.cfg.ClampTemperature {
		return nil, xogen.InvalidRequestErrorf(p.cfg.ID, "temperature %v exceeds maximum %v", req.Temperature, limit)
	}

	if p.cfg.Latency > 0 {
		timer := time.NewTimer(p.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, xogen.BackendError(p.cfg.ID, false, ctx.Err())
		case <-timer.C:
		}
	}
	if p.cfg.GenerateErr != nil {
		return nil, xogen.BackendError(p.cfg.ID, false, p.cfg.GenerateErr)
	}

	completions := make([]xogen.Tokens, req.N)
	for i := range completions {
		text := req.Prompt
		if len(p.cfg.Completions) > 0 {
			text = p.cfg.Completions[i%len(p.cfg.Completions)]
		}
		completions[i] = xogen.TruncateAtStop(p.toTokens(text, false), req.Stop)
	}
	return xogen.NewGeneration(p.cfg.ID, p.cfg.Model, p.toTokens(req.Prompt, true), completions, req.N)
}

func (p *Provider) toTokens(text string, prompt bool) xogen.Tokens {
	if !p.cfg.Tokenize {
		return xogen.Text(text)
	}
	tokens := Split(text)
	logprobs := make([]*float64, len(tokens))
	for i := range tokens {
		if prompt && i == 0 {
			continue
		}
		logprobs[i] = xogen.Logprob(p.cfg.Logprob)
	}
	return xogen.Tokens{Text: text, Tokens: tokens, Logprobs: logprobs}
}

func (p *Provider) record(req xogen.Request) {
	req.Stop = req.StopSequences()
	if req.MaxTokens != nil {
		req.MaxTokens = xogen.MaxTokensOf(*req.MaxTokens)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
}

// Calls returns a copy of all requests received by Generate.
func (p *Provider) Calls() []xogen.Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]xogen.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

// Reset clears call history.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Split breaks text into tokens that each carry their leading whitespace, so
// the tokens concatenate back to text. Trailing whitespace is its own token.
func Split(text string) []string {
	tokens := []string{}
	start := 0
	inWord := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if space && inWord {
			tokens = append(tokens, text[start:i])
			start = i
			inWord = false
		} else if !space {
			inWord = true
		}
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}
