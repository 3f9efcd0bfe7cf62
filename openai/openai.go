// Package openai provides a generation provider for the OpenAI completions
// endpoint (/v1/completions).
//
// It asks the API to echo the prompt with log-probabilities, so both the
// prompt and every completion carry tokens and logprobs. The first prompt
// token is never scored by the API; it is reported as an absent logprob.
// All n completions come from one request. Temperatures above 2 are rejected
// as invalid, as are more than 4 stop sequences. Generate works without
// Initialize; Initialize verifies the API key and model.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/xostack/xogen"
	"github.com/xostack/xogen/internal/httpjson"
	xlog "github.com/xostack/xogen/internal/log"
)

const (
	defaultOpenAIModel = "gpt-3.5-turbo-instruct"
	providerName       = "openai"
	defaultBaseURL     = "https://api.openai.com/v1"
	completionsPath    = "/completions"
	maxTemperature     = 2.0
	maxStopSequences   = 4
)

// Client implements xogen.Provider for OpenAI completions.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	modelName  string
	logger     *slog.Logger
}

var _ xogen.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different completions-compatible
// endpoint, such as a local vLLM server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature"`
	N           int      `json:"n"`
	Stop        []string `json:"stop,omitempty"`
	Logprobs    int      `json:"logprobs"`
	Echo        bool     `json:"echo"`
}

type completionLogprobs struct {
	Tokens        []string   `json:"tokens"`
	TokenLogprobs []*float64 `json:"token_logprobs"`
}

type completionChoice struct {
	Text         string              `json:"text"`
	Index        int                 `json:"index"`
	Logprobs     *completionLogprobs `json:"logprobs"`
	FinishReason string              `json:"finish_reason"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
}

// NewClient creates a new OpenAI completions client.
func NewClient(apiKey string, modelOverride string, requestTimeoutSeconds int, debugMode bool, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	modelToUse := defaultOpenAIModel
	if modelOverride != "" {
		modelToUse = modelOverride
	}

	timeout := time.Duration(requestTimeoutSeconds) * time.Second
	if requestTimeoutSeconds <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		modelName:  modelToUse,
		logger:     xlog.Provider(debugMode, providerName),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger.Debug("OpenAI client created", "model", c.modelName, "base_url", c.baseURL)
	return c, nil
}

// ID returns "openai:<model>".
func (c *Client) ID() string {
	return providerName + ":" + c.modelName
}

// Name returns a display label for this client.
func (c *Client) Name() string {
	return fmt.Sprintf("OpenAI (%s)", c.modelName)
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	return h
}

// Initialize verifies the API key by fetching the configured model.
func (c *Client) Initialize(ctx context.Context) error {
	if c.httpClient == nil {
		return xogen.ConfigErrorf(c.ID(), "OpenAI client not constructed with NewClient")
	}
	modelURL := c.baseURL + "/models/" + url.PathEscape(c.modelName)
	if _, err := httpjson.Do(ctx, c.httpClient, http.MethodGet, modelURL, c.header(), nil, nil); err != nil {
		return xogen.ConfigError(c.ID(), fmt.Errorf("failed to verify OpenAI model '%s': %w", c.modelName, err))
	}
	return nil
}

// Generate requests req.N completions in a single call.
func (c *Client) Generate(ctx context.Context, req xogen.Request) (*xogen.Generation, error) {
	if err := xogen.ValidateRequest(c.ID(), req); err != nil {
		return nil, err
	}
	if req.Temperature > maxTemperature {
		return nil, xogen.InvalidRequestErrorf(c.ID(), "temperature %v exceeds maximum %v", req.Temperature, maxTemperature)
	}
	if len(req.Stop) > maxStopSequences {
		return nil, xogen.InvalidRequestErrorf(c.ID(), "at most %d stop sequences are supported, got %d", maxStopSequences, len(req.Stop))
	}
	if c.httpClient == nil {
		return nil, xogen.ConfigErrorf(c.ID(), "OpenAI client not initialized")
	}

	payload := completionRequest{
		Model:       c.modelName,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		N:           req.N,
		Stop:        req.StopSequences(),
		Logprobs:    0,
		Echo:        true,
	}

	var resp completionResponse
	requestID, err := httpjson.Do(ctx, c.httpClient, http.MethodPost, c.baseURL+completionsPath, c.header(), payload, &resp)
	if err != nil {
		c.logger.Debug("OpenAI request failed", "request_id", requestID, "error", err)
		return nil, httpjson.Classify(c.ID(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, xogen.BackendErrorf(c.ID(), false, "OpenAI response %s contained no choices", resp.ID)
	}

	choices := make([]completionChoice, len(resp.Choices))
	copy(choices, resp.Choices)
	sort.SliceStable(choices, func(i, j int) bool { return choices[i].Index < choices[j].Index })

	prompt := xogen.Text(req.Prompt)
	completions := make([]xogen.Tokens, 0, len(choices))
	for i, ch := range choices {
		p, comp, err := splitEcho(req.Prompt, ch)
		if err != nil {
			return nil, xogen.BackendErrorf(c.ID(), false, "choice %d: %v", ch.Index, err)
		}
		if i == 0 {
			prompt = p
		}
		completions = append(completions, xogen.TruncateAtStop(comp, req.Stop))
	}

	model := resp.Model
	if model == "" {
		model = c.modelName
	}
	c.logger.Debug("OpenAI completions received", "request_id", requestID, "id", resp.ID, "choices", len(choices))
	return xogen.NewGeneration(c.ID(), model, prompt, completions, req.N)
}

// splitEcho separates an echoed choice into prompt and completion records.
// Token detail is kept only where the tokens spell out each part exactly.
func splitEcho(prompt string, ch completionChoice) (xogen.Tokens, xogen.Tokens, error) {
	if !strings.HasPrefix(ch.Text, prompt) {
		return xogen.Tokens{}, xogen.Tokens{}, fmt.Errorf("echoed text does not start with the prompt")
	}
	completionText := ch.Text[len(prompt):]
	promptRec, compRec := xogen.Text(prompt), xogen.Text(completionText)

	lp := ch.Logprobs
	if lp == nil || len(lp.Tokens) == 0 {
		return promptRec, compRec, nil
	}
	if lp.TokenLogprobs != nil && len(lp.TokenLogprobs) != len(lp.Tokens) {
		return xogen.Tokens{}, xogen.Tokens{}, fmt.Errorf("%d logprobs for %d tokens", len(lp.TokenLogprobs), len(lp.Tokens))
	}

	// Find the token index where the prompt ends.
	split, pos := -1, 0
	for i, tok := range lp.Tokens {
		if pos == len(prompt) {
			split = i
			break
		}
		pos += len(tok)
	}
	if split < 0 && pos == len(prompt) {
		split = len(lp.Tokens)
	}
	if split < 0 {
		return promptRec, compRec, nil
	}

	promptRec = withDetail(prompt, lp.Tokens[:split], lp.TokenLogprobs, 0)
	compRec = withDetail(completionText, lp.Tokens[split:], lp.TokenLogprobs, split)
	return promptRec, compRec, nil
}

func withDetail(text string, tokens []string, all []*float64, offset int) xogen.Tokens {
	if strings.Join(tokens, "") != text {
		return xogen.Text(text)
	}
	t := xogen.Tokens{Text: text, Tokens: append([]string{}, tokens...)}
	if all != nil {
		t.Logprobs = make([]*float64, len(tokens))
		for i := range tokens {
			if v := all[offset+i]; v != nil {
				t.Logprobs[i] = xogen.Logprob(*v)
			}
		}
	}
	return t
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
