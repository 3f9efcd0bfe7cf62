package xogen

import "fmt"

// Tokens is the text of a prompt or completion together with optional
// token-level detail.
//
// A nil Tokens slice means the tokenization is unknown, which is different
// from a known, empty tokenization. Likewise a nil Logprobs slice means no
// log-probabilities are available, and a nil element means that one token was
// not scored. When Logprobs is non-nil it has the same length as Tokens.
//
// Tokens values are treated as immutable once a provider returns them.
type Tokens struct {
	Text     string     `json:"text"`
	Tokens   []string   `json:"tokens"`
	Logprobs []*float64 `json:"logprobs"`
}

// Text returns a record with only text and no token detail.
func Text(s string) Tokens {
	return Tokens{Text: s}
}

// NewTokens builds a record and checks its invariants.
func NewTokens(text string, tokens []string, logprobs []*float64) (Tokens, error) {
	t := Tokens{Text: text, Tokens: tokens, Logprobs: logprobs}
	if err := t.Validate(); err != nil {
		return Tokens{}, err
	}
	return t, nil
}

// Logprob returns a pointer to v for use as a present log-probability.
func Logprob(v float64) *float64 {
	return &v
}

// Validate reports whether Logprobs is consistent with Tokens.
func (t Tokens) Validate() error {
	if t.Logprobs == nil {
		return nil
	}
	if t.Tokens == nil {
		return fmt.Errorf("logprobs present without tokens")
	}
	if len(t.Logprobs) != len(t.Tokens) {
		return fmt.Errorf("logprobs length %d does not match tokens length %d", len(t.Logprobs), len(t.Tokens))
	}
	return nil
}

// HasTokens reports whether the tokenization is known.
func (t Tokens) HasTokens() bool {
	return t.Tokens != nil
}

// HasLogprobs reports whether per-token log-probabilities are known.
func (t Tokens) HasLogprobs() bool {
	return t.Logprobs != nil
}

// LogprobAt returns the log-probability of token i and whether it is present.
func (t Tokens) LogprobAt(i int) (float64, bool) {
	if i < 0 || i >= len(t.Logprobs) || t.Logprobs[i] == nil {
		return 0, false
	}
	return *t.Logprobs[i], true
}

// Equal reports whether t and o are field-wise equal, including which
// sequences and which log-probability elements are absent.
func (t Tokens) Equal(o Tokens) bool {
	if t.Text != o.Text {
		return false
	}
	if (t.Tokens == nil) != (o.Tokens == nil) || len(t.Tokens) != len(o.Tokens) {
		return false
	}
	for i := range t.Tokens {
		if t.Tokens[i] != o.Tokens[i] {
			return false
		}
	}
	if (t.Logprobs == nil) != (o.Logprobs == nil) || len(t.Logprobs) != len(o.Logprobs) {
		return false
	}
	for i := range t.Logprobs {
		a, b := t.Logprobs[i], o.Logprobs[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of t that shares no memory with it.
func (t Tokens) Clone() Tokens {
	out := Tokens{Text: t.Text}
	if t.Tokens != nil {
		out.Tokens = make([]string, len(t.Tokens))
		copy(out.Tokens, t.Tokens)
	}
	if t.Logprobs != nil {
		out.Logprobs = make([]*float64, len(t.Logprobs))
		for i, lp := range t.Logprobs {
			if lp != nil {
				out.Logprobs[i] = Logprob(*lp)
			}
		}
	}
	return out
}

// SumLogprob returns the sum of the present log-probabilities. The second
// result is false when none are present.
func (t Tokens) SumLogprob() (float64, bool) {
	var sum float64
	var seen int
	for _, lp := range t.Logprobs {
		if lp == nil {
			continue
		}
		sum += *lp
		seen++
	}
	return sum, seen > 0
}

// MeanLogprob returns the mean of the present log-probabilities. The second
// result is false when none are present.
func (t Tokens) MeanLogprob() (float64, bool) {
	var sum float64
	var seen int
	for _, lp := range t.Logprobs {
		if lp == nil {
			continue
		}
		sum += *lp
		seen++
	}
	if seen == 0 {
		return 0, false
	}
	return sum / float64(seen), true
}
