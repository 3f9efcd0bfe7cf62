// Package xogen defines the contract between a text-generation orchestration
// layer and pluggable language-model backends.
//
// A backend is any value satisfying Provider: a hosted API client, a local
// inference runtime, or a test double. Every provider returns the same
// self-contained Generation value, which carries the prompt and each
// completion as a Tokens record with optional token and log-probability
// detail.
//
// Concrete providers live in their own packages:
//   - claude: Anthropic Messages API
//   - gemini: Google Gemini
//   - groq: Groq chat completions
//   - ollama: self-hosted Ollama
//   - openai: OpenAI completions with echoed prompt log-probabilities
//   - mock: in-process test double
//
// Example usage:
//
//	p, err := ollama.NewClient("http://localhost:11434", "", 60, false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := p.Initialize(ctx); err != nil {
//		log.Fatal(err)
//	}
//	gen, err := p.Generate(ctx, xogen.Request{Prompt: "Hello", N: 3})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, c := range gen.Completions {
//		fmt.Println(c.Text)
//	}
package xogen

import (
	"context"
	"math"
)

// Provider is the interface every generation backend must implement.
//
// The lifecycle has two phases: uninitialized and initialized. Callers invoke
// Initialize once before the first Generate. Whether Generate works before
// Initialize is left to each implementation, which documents its choice.
//
// Once Initialize has returned, Generate must be safe for concurrent use.
// Initialize itself need not be safe to call concurrently with anything.
type Provider interface {
	// ID returns a stable, non-empty identifier for this instance. It is used
	// as a routing and cache key and may be called before Initialize.
	ID() string

	// Name returns a human-readable label for this instance.
	Name() string

	// Initialize performs one-time setup such as credential validation,
	// connection establishment or model loading. Failures are configuration
	// errors (see ErrConfig) and leave the provider unusable. Calling it more
	// than once is not supported by the contract.
	Initialize(ctx context.Context) error

	// Generate produces req.N independent completions of req.Prompt.
	//
	// On success the returned Generation has exactly req.N completions.
	// A backend that yields fewer must fail the whole call instead. Invalid
	// requests fail with ErrInvalidRequest; backend problems fail with
	// ErrBackend. Generate never modifies req.
	//
	// ctx bounds the call: when it is canceled the provider releases whatever
	// it acquired and returns.
	Generate(ctx context.Context, req Request) (*Generation, error)
}

// Request holds the parameters of one Generate call.
type Request struct {
	// Prompt is the text to complete. It must not be empty.
	Prompt string

	// MaxTokens bounds the length of each completion. Nil means the
	// provider's default or maximum.
	MaxTokens *int

	// Temperature is the sampling temperature. Zero means greedy decoding.
	// Providers clamp or reject values they cannot honor and document which.
	Temperature float64

	// N is the number of independent completions. It must be at least 1.
	N int

	// Stop lists stop sequences. Each completion ends no later than the first
	// occurrence of any of them. Nil means no explicit stop sequence.
	Stop []string
}

// MaxTokensOf returns a MaxTokens value for use in a Request literal.
func MaxTokensOf(n int) *int {
	return &n
}

// ValidateRequest checks the caller-supplied parts of req that every provider
// must reject. providerID is recorded on the returned error.
func ValidateRequest(providerID string, req Request) error {
	if req.Prompt == "" {
		return InvalidRequestErrorf(providerID, "prompt must not be empty")
	}
	if req.N < 1 {
		return InvalidRequestErrorf(providerID, "n must be at least 1, got %d", req.N)
	}
	if math.IsNaN(req.Temperature) || math.IsInf(req.Temperature, 0) || req.Temperature < 0 {
		return InvalidRequestErrorf(providerID, "temperature must be a non-negative number, got %v", req.Temperature)
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return InvalidRequestErrorf(providerID, "max tokens must be positive, got %d", *req.MaxTokens)
	}
	for i, s := range req.Stop {
		if s == "" {
			return InvalidRequestErrorf(providerID, "stop sequence %d is empty", i)
		}
	}
	return nil
}

// StopSequences returns a copy of req.Stop so providers can hand it to a
// backend client without aliasing the caller's slice.
func (r Request) StopSequences() []string {
	if r.Stop == nil {
		return nil
	}
	out := make([]string, len(r.Stop))
	copy(out, r.Stop)
	return out
}
