package xogen

// Generation is the result of one Generate call: the prompt as the provider
// processed it and exactly n completions.
//
// It is self-contained. Consumers never need to call back into the provider
// to interpret it, and the caller owns it outright.
type Generation struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Completions []Tokens `json:"completions"`
	Prompt      Tokens   `json:"prompt"`
}

// NewGeneration assembles a Generation, checking that exactly n completions
// are present and every record is well formed. A mismatch is reported as a
// backend error because it means the backend response could not be
// normalized. The records are copied.
func NewGeneration(provider, model string, prompt Tokens, completions []Tokens, n int) (*Generation, error) {
	if n < 1 {
		return nil, InvalidRequestErrorf(provider, "n must be at least 1, got %d", n)
	}
	if len(completions) != n {
		return nil, BackendErrorf(provider, false, "backend returned %d completions, want %d", len(completions), n)
	}
	if err := prompt.Validate(); err != nil {
		return nil, BackendErrorf(provider, false, "malformed prompt record: %v", err)
	}
	out := make([]Tokens, n)
	for i, c := range completions {
		if err := c.Validate(); err != nil {
			return nil, BackendErrorf(provider, false, "malformed completion %d: %v", i, err)
		}
		out[i] = c.Clone()
	}
	return &Generation{
		Provider:    provider,
		Model:       model,
		Completions: out,
		Prompt:      prompt.Clone(),
	}, nil
}

// Texts returns the text of each completion in order.
func (g *Generation) Texts() []string {
	out := make([]string, len(g.Completions))
	for i, c := range g.Completions {
		out[i] = c.Text
	}
	return out
}
