// Package ollama provides a generation provider backed by a self-hosted
// Ollama server.
//
// Ollama returns one completion per request, so n completions are produced
// by n concurrent /api/generate calls. Temperature is passed through
// unchanged. Generate works without Initialize; Initialize only verifies the
// server is reachable and the model has been pulled.
package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xostack/xogen"
	"github.com/xostack/xogen/internal/httpjson"
	xlog "github.com/xostack/xogen/internal/log"
)

const (
	defaultOllamaModel = "gemma:2b" // A common default, user can override in config
	providerName       = "ollama"
	generateAPIPath    = "/api/generate"
	tagsAPIPath        = "/api/tags"
	defaultParallelism = 4
)

// Client implements xogen.Provider for Ollama.
type Client struct {
	httpClient  *http.Client
	baseURL     string // e.g., "http://localhost:11434"
	modelName   string
	parallelism int
	logger      *slog.Logger
}

var _ xogen.Provider = (*Client)(nil)

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// ollamaGenerateRequest is the structure for the request body to Ollama's /api/generate.
type ollamaGenerateRequest struct {
	Model    string        `json:"model"`
	Prompt   string        `json:"prompt"`
	Stream   bool          `json:"stream"` // Non-streaming behavior for complete responses
	Logprobs bool          `json:"logprobs,omitempty"`
	Options  ollamaOptions `json:"options"`
}

type ollamaLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

// ollamaGenerateResponse is the structure for the response from Ollama's /api/generate
// when stream is false.
type ollamaGenerateResponse struct {
	Model      string          `json:"model"`
	CreatedAt  time.Time       `json:"created_at"`
	Response   string          `json:"response"` // This is the generated text
	Done       bool            `json:"done"`
	DoneReason string          `json:"done_reason,omitempty"`
	Logprobs   []ollamaLogprob `json:"logprobs,omitempty"` // Only from servers that support it
	EvalCount  int             `json:"eval_count,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// NewClient creates a new Ollama client.
// baseURL is the address of the Ollama server (e.g., "http://localhost:11434").
// modelOverride is an optional model name to use instead of the default.
// requestTimeoutSeconds <= 0 selects a 60 second timeout.
// debugMode controls verbose logging.
func NewClient(baseURL string, modelOverride string, requestTimeoutSeconds int, debugMode bool) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("Ollama base URL is required")
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL '%s': %w", baseURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("Ollama base URL scheme must be http or https, got '%s'", parsedURL.Scheme)
	}
	cleanedBaseURL := strings.TrimSuffix(parsedURL.String(), "/")

	logger := xlog.Provider(debugMode, providerName)

	modelToUse := defaultOllamaModel
	if modelOverride != "" {
		modelToUse = modelOverride
		logger.Debug("using overridden Ollama model", "model", modelToUse)
	} else {
		logger.Debug("using default Ollama model", "model", modelToUse)
	}

	timeout := time.Duration(requestTimeoutSeconds) * time.Second
	if requestTimeoutSeconds <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     cleanedBaseURL,
		modelName:   modelToUse,
		parallelism: defaultParallelism,
		logger:      logger,
	}, nil
}

// ID returns "ollama:<model>".
func (c *Client) ID() string {
	return providerName + ":" + c.modelName
}

// Name returns a display label for this client.
func (c *Client) Name() string {
	return fmt.Sprintf("Ollama (%s)", c.modelName)
}

// Model returns the model this client generates with.
func (c *Client) Model() string {
	return c.modelName
}

// Initialize checks that the server answers and that the model is pulled.
func (c *Client) Initialize(ctx context.Context) error {
	if c.httpClient == nil {
		return xogen.ConfigErrorf(c.ID(), "Ollama client not constructed with NewClient")
	}

	var tags ollamaTagsResponse
	if _, err := httpjson.Do(ctx, c.httpClient, http.MethodGet, c.baseURL+tagsAPIPath, nil, nil, &tags); err != nil {
		return xogen.ConfigError(c.ID(), fmt.Errorf("failed to reach Ollama server at %s: %w", c.baseURL, err))
	}

	for _, m := range tags.Models {
		if matchesModel(m.Name, c.modelName) || matchesModel(m.Model, c.modelName) {
			c.logger.Debug("Ollama model available", "model", c.modelName, "base_url", c.baseURL)
			return nil
		}
	}
	return xogen.ConfigErrorf(c.ID(), "model '%s' is not available on %s; pull it with 'ollama pull %s'", c.modelName, c.baseURL, c.modelName)
}

// matchesModel treats "name" and "name:latest" as the same model.
func matchesModel(have, want string) bool {
	if have == want {
		return true
	}
	return !strings.Contains(want, ":") && have == want+":latest"
}

// Generate sends req.N independent requests to the Ollama model.
func (c *Client) Generate(ctx context.Context, req xogen.Request) (*xogen.Generation, error) {
	if err := xogen.ValidateRequest(c.ID(), req); err != nil {
		return nil, err
	}
	if c.httpClient == nil {
		return nil, xogen.ConfigErrorf(c.ID(), "Ollama client not initialized")
	}

	completions, err := xogen.FanOut(ctx, req.N, c.parallelism, func(ctx context.Context, _ int) (xogen.Tokens, error) {
		return c.generateOne(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	return xogen.NewGeneration(c.ID(), c.modelName, xogen.Text(req.Prompt), completions, req.N)
}

func (c *Client) generateOne(ctx context.Context, req xogen.Request) (xogen.Tokens, error) {
	temperature := req.Temperature
	payload := ollamaGenerateRequest{
		Model:    c.modelName,
		Prompt:   req.Prompt,
		Stream:   false,
		Logprobs: true,
		Options: ollamaOptions{
			Temperature: &temperature,
			NumPredict:  req.MaxTokens,
			Stop:        req.StopSequences(),
		},
	}

	var resp ollamaGenerateResponse
	requestID, err := httpjson.Do(ctx, c.httpClient, http.MethodPost, c.baseURL+generateAPIPath, nil, payload, &resp)
	if err != nil {
		c.logger.Debug("Ollama request failed", "request_id", requestID, "error", err)
		return xogen.Tokens{}, httpjson.Classify(c.ID(), err)
	}

	if resp.Error != "" {
		return xogen.Tokens{}, xogen.BackendErrorf(c.ID(), false, "Ollama returned an error in response: %s", resp.Error)
	}
	if !resp.Done {
		return xogen.Tokens{}, xogen.BackendErrorf(c.ID(), false, "Ollama response indicates not done")
	}

	c.logger.Debug("Ollama completion received", "request_id", requestID, "eval_count", resp.EvalCount, "done_reason", resp.DoneReason)
	return xogen.TruncateAtStop(completionTokens(resp), req.Stop), nil
}

// completionTokens keeps the server's logprobs only when their tokens spell
// out the response exactly.
func completionTokens(resp ollamaGenerateResponse) xogen.Tokens {
	if len(resp.Logprobs) == 0 {
		return xogen.Text(resp.Response)
	}
	tokens := make([]string, len(resp.Logprobs))
	logprobs := make([]*float64, len(resp.Logprobs))
	for i, lp := range resp.Logprobs {
		tokens[i] = lp.Token
		logprobs[i] = xogen.Logprob(lp.Logprob)
	}
	if strings.Join(tokens, "") != resp.Response {
		return xogen.Text(resp.Response)
	}
	return xogen.Tokens{Text: resp.Response, Tokens: tokens, Logprobs: logprobs}
}

// Close releases idle keep-alive connections.
func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
