package xogen_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xostack/xogen"
)

func TestNewTokens_RoundTrip(t *testing.T) {
	lps := []*float64{xogen.Logprob(-0.5), nil}
	tok, err := xogen.NewTokens("hi there", []string{"hi", " there"}, lps)
	require.NoError(t, err)

	assert.Equal(t, "hi there", tok.Text)
	assert.Equal(t, []string{"hi", " there"}, tok.Tokens)
	require.Len(t, tok.Logprobs, 2)
	assert.InDelta(t, -0.5, *tok.Logprobs[0], 1e-12)
	assert.Nil(t, tok.Logprobs[1])
}

func TestNewTokens_LengthMismatch(t *testing.T) {
	_, err := xogen.NewTokens("ab", []string{"a", "b"}, []*float64{xogen.Logprob(-1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestNewTokens_LogprobsWithoutTokens(t *testing.T) {
	_, err := xogen.NewTokens("ab", nil, []*float64{xogen.Logprob(-1)})
	require.Error(t, err)
}

func TestTokens_AbsentVersusEmpty(t *testing.T) {
	unknown := xogen.Text("")
	empty := xogen.Tokens{Text: "", Tokens: []string{}}

	assert.False(t, unknown.HasTokens())
	assert.True(t, empty.HasTokens())
	assert.False(t, unknown.Equal(empty))
	assert.False(t, empty.Equal(unknown))
}

func TestTokens_EqualProperties(t *testing.T) {
	mk := func() xogen.Tokens {
		return xogen.Tokens{
			Text:     "a b",
			Tokens:   []string{"a", " b"},
			Logprobs: []*float64{nil, xogen.Logprob(-0.25)},
		}
	}
	a, b, c := mk(), mk(), mk()

	assert.True(t, a.Equal(a), "reflexive")
	assert.True(t, a.Equal(b) && b.Equal(a), "symmetric")
	assert.True(t, a.Equal(b) && b.Equal(c) && a.Equal(c), "transitive")
}

func TestTokens_EqualDetectsDifferences(t *testing.T) {
	base := xogen.Tokens{
		Text:     "a b",
		Tokens:   []string{"a", " b"},
		Logprobs: []*float64{nil, xogen.Logprob(-0.25)},
	}

	tests := []struct {
		name  string
		other xogen.Tokens
	}{
		{"text", xogen.Tokens{Text: "a c", Tokens: []string{"a", " b"}, Logprobs: []*float64{nil, xogen.Logprob(-0.25)}}},
		{"token", xogen.Tokens{Text: "a b", Tokens: []string{"a", "b"}, Logprobs: []*float64{nil, xogen.Logprob(-0.25)}}},
		{"absent logprob element", xogen.Tokens{Text: "a b", Tokens: []string{"a", " b"}, Logprobs: []*float64{xogen.Logprob(0), xogen.Logprob(-0.25)}}},
		{"logprob value", xogen.Tokens{Text: "a b", Tokens: []string{"a", " b"}, Logprobs: []*float64{nil, xogen.Logprob(-0.5)}}},
		{"absent logprobs", xogen.Tokens{Text: "a b", Tokens: []string{"a", " b"}}},
		{"absent tokens", xogen.Text("a b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, base.Equal(tt.other))
			assert.False(t, tt.other.Equal(base))
		})
	}
}

func TestTokens_CloneIsIndependent(t *testing.T) {
	orig := xogen.Tokens{
		Text:     "x",
		Tokens:   []string{"x"},
		Logprobs: []*float64{xogen.Logprob(-1)},
	}
	cp := orig.Clone()
	require.True(t, orig.Equal(cp))

	cp.Tokens[0] = "y"
	*cp.Logprobs[0] = 0
	assert.Equal(t, "x", orig.Tokens[0])
	assert.InDelta(t, -1.0, *orig.Logprobs[0], 1e-12)
}

func TestTokens_LogprobAt(t *testing.T) {
	tok := xogen.Tokens{Text: "ab", Tokens: []string{"a", "b"}, Logprobs: []*float64{nil, xogen.Logprob(-2)}}

	_, ok := tok.LogprobAt(0)
	assert.False(t, ok)
	v, ok := tok.LogprobAt(1)
	assert.True(t, ok)
	assert.InDelta(t, -2.0, v, 1e-12)
	_, ok = tok.LogprobAt(5)
	assert.False(t, ok)
}

func TestTokens_MeanAndSumLogprob(t *testing.T) {
	tok := xogen.Tokens{
		Text:     "abc",
		Tokens:   []string{"a", "b", "c"},
		Logprobs: []*float64{nil, xogen.Logprob(-1), xogen.Logprob(-3)},
	}
	mean, ok := tok.MeanLogprob()
	require.True(t, ok)
	assert.InDelta(t, -2.0, mean, 1e-12)

	sum, ok := tok.SumLogprob()
	require.True(t, ok)
	assert.InDelta(t, -4.0, sum, 1e-12)

	_, ok = xogen.Text("abc").MeanLogprob()
	assert.False(t, ok)
}

func TestTokens_JSONPreservesAbsence(t *testing.T) {
	tok := xogen.Tokens{Text: "ab", Tokens: []string{"a", "b"}, Logprobs: []*float64{nil, xogen.Logprob(-1.5)}}
	b, err := json.Marshal(tok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"ab","tokens":["a","b"],"logprobs":[null,-1.5]}`, string(b))

	var back xogen.Tokens
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, tok.Equal(back))

	b, err = json.Marshal(xogen.Text("ab"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"ab","tokens":null,"logprobs":null}`, string(b))
}
