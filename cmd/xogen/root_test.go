package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xostack/xogen"
)

const testConfig = `
default_provider = "echo"

[llms.echo]
type = "mock"
model = "echo-1"

[llms.canned]
type = "mock"
model = "canned-1"
completions = ["alpha beta", "gamma", "delta epsilon zeta"]

[llms.groq]
api_key = ""
`

func writeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-color", "--quiet"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, "", "--help")
	require.NoError(t, err)
	for _, sub := range []string{"generate", "rank", "providers", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"verbose", "quiet", "no-color", "config", "provider"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "config", cmd.PersistentFlags().ShorthandLookup("c").Name)
	assert.Equal(t, "provider", cmd.PersistentFlags().ShorthandLookup("p").Name)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "xogen dev\n", out)
}

func TestGenerate(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "-c", cfg, "generate", "hello", "there", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "mock:echo-1 (echo-1)")
	assert.Equal(t, 2, strings.Count(out, "hello there\n"))
}

func TestGenerate_Stdin(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "from stdin\n", "-c", cfg, "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "from stdin\n")
}

func TestGenerate_JSON(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "-c", cfg, "-p", "canned", "generate", "--json", "-n", "2", "--stop", " ", "q")
	require.NoError(t, err)

	var gen xogen.Generation
	require.NoError(t, json.Unmarshal([]byte(out), &gen))
	assert.Equal(t, "mock:canned-1", gen.Provider)
	assert.Equal(t, []string{"alpha", "gamma"}, gen.Texts())
	assert.NotNil(t, gen.Completions[0].Tokens)
}

func TestGenerate_ExitCodes(t *testing.T) {
	cfg := writeConfig(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"invalid request", []string{"-c", cfg, "generate", "-n", "0", "x"}, ExitInvalidRequest},
		{"unknown provider", []string{"-c", cfg, "-p", "nope", "generate", "x"}, ExitConfig},
		{"missing credentials", []string{"-c", cfg, "-p", "groq", "generate", "x"}, ExitConfig},
		{"missing config file", []string{"-c", filepath.Join(t.TempDir(), "none.toml"), "generate", "x"}, ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			var ece *exitCodeError
			require.True(t, errors.As(err, &ece), "want exitCodeError, got %T", err)
			assert.Equal(t, tt.code, ece.ExitCode())
		})
	}
}

func TestRank(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "-c", cfg, "-p", "canned", "rank", "-n", "3", "question")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "-1.0000")
}

func TestRankCompletions(t *testing.T) {
	scored := func(text string, lp ...float64) xogen.Tokens {
		tokens := make([]string, len(lp))
		logprobs := make([]*float64, len(lp))
		for i, v := range lp {
			tokens[i] = text[i : i+1]
			logprobs[i] = xogen.Logprob(v)
		}
		return xogen.Tokens{Text: text[:len(lp)], Tokens: tokens, Logprobs: logprobs}
	}

	gen, err := xogen.NewGeneration("p", "m", xogen.Text("q"), []xogen.Tokens{
		xogen.Text("unscored"),
		scored("ab", -2, -2),
		scored("cd", -0.5, -0.5),
		xogen.Text("also unscored"),
	}, 4)
	require.NoError(t, err)

	ranked := rankCompletions(gen)
	require.Len(t, ranked, 4)
	assert.Equal(t, []int{2, 1, 0, 3}, []int{ranked[0].Index, ranked[1].Index, ranked[2].Index, ranked[3].Index})
	assert.True(t, ranked[0].Scored)
	assert.False(t, ranked[3].Scored)
}

func TestProviders(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "-c", cfg, "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "* echo")
	assert.Contains(t, out, "mock:canned-1")
	assert.Contains(t, out, "groq")
	assert.Contains(t, out, "unavailable")

	out, err = execute(t, "", "-c", cfg, "providers", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "mock:echo-1 ready")
}
