// Package groq provides a generation provider for Groq's cloud API.
//
// Groq's chat completions endpoint only accepts n=1, so n completions are
// produced by concurrent requests. Temperatures above Groq's maximum of 2
// are clamped to 2. The API does not return log-probabilities, so
// completions carry text only. Generate works without Initialize; Initialize
// verifies the API key and model.
package groq

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
	defaultGroqModel   = "gemma2-9b-it" // A common default, user can override
	providerName       = "groq"
	defaultBaseURL     = "https://api.groq.com/openai/v1"
	chatCompletionPath = "/chat/completions"
	maxTemperature     = 2.0
	defaultParallelism = 4
)

// Client implements xogen.Provider for Groq.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	modelName   string
	parallelism int
	logger      *slog.Logger
}

var _ xogen.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithParallelism bounds the number of concurrent requests per Generate.
func WithParallelism(n int) Option {
	return func(c *Client) {
		c.parallelism = n
	}
}

// groqChatMessage represents a single message in the chat completion request.
type groqChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// groqChatCompletionRequest is the structure for the request body to Groq's API.
type groqChatCompletionRequest struct {
	Messages    []groqChatMessage `json:"messages"`
	Model       string            `json:"model"`
	Temperature *float64          `json:"temperature,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	N           int               `json:"n"`
	Stream      bool              `json:"stream"`
}

// groqChatCompletionResponseChoice is a single choice in the response.
type groqChatCompletionResponseChoice struct {
	Index        int             `json:"index"`
	Message      groqChatMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// groqUsage tracks token usage.
type groqUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// groqChatCompletionResponse is the structure for the response from Groq's API.
type groqChatCompletionResponse struct {
	ID      string                             `json:"id"`
	Model   string                             `json:"model"`
	Choices []groqChatCompletionResponseChoice `json:"choices"`
	Usage   groqUsage                          `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error,omitempty"`
}

// NewClient creates a new Groq client.
// debugMode controls verbose logging.
func NewClient(apiKey string, modelOverride string, requestTimeoutSeconds int, debugMode bool, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}

	logger := xlog.Provider(debugMode, providerName)

	modelToUse := defaultGroqModel
	if modelOverride != "" {
		modelToUse = modelOverride
		logger.Debug("using overridden Groq model", "model", modelToUse)
	} else {
		logger.Debug("using default Groq model", "model", modelToUse)
	}

	timeout := time.Duration(requestTimeoutSeconds) * time.Second
	if requestTimeoutSeconds <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		modelName:   modelToUse,
		parallelism: defaultParallelism,
		logger:      logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ID returns "groq:<model>".
func (c *Client) ID() string {
	return providerName + ":" + c.modelName
}

// Name returns a display label for this client.
func (c *Client) Name() string {
	return fmt.Sprintf("Groq (%s)", c.modelName)
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	return h
}

// Initialize verifies the API key by fetching the configured model.
func (c *Client) Initialize(ctx context.Context) error {
	if c.httpClient == nil {
		return xogen.ConfigErrorf(c.ID(), "groq client not constructed with NewClient")
	}
	modelURL := c.baseURL + "/models/" + url.PathEscape(c.modelName)
	if _, err := httpjson.Do(ctx, c.httpClient, http.MethodGet, modelURL, c.header(), nil, nil); err != nil {
		return xogen.ConfigError(c.ID(), fmt.Errorf("failed to verify Groq model '%s': %w", c.modelName, err))
	}
	c.logger.Debug("Groq model verified", "model", c.modelName)
	return nil
}

// Generate sends req.N single-completion requests to the Groq model.
// The prompt is sent as a single user message.
func (c *Client) Generate(ctx context.Context, req xogen.Request) (*xogen.Generation, error) {
	if err := xogen.ValidateRequest(c.ID(), req); err != nil {
		return nil, err
	}
	if c.httpClient == nil {
		return nil, xogen.ConfigErrorf(c.ID(), "groq client not initialized")
	}

	temperature := req.Temperature
	if temperature > maxTemperature {
		c.logger.Debug("clamping temperature", "requested", temperature, "max", maxTemperature)
		temperature = maxTemperature
	}

	payload := groqChatCompletionRequest{
		Messages:    []groqChatMessage{{Role: "user", Content: req.Prompt}},
		Model:       c.modelName,
		Temperature: &temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.StopSequences(),
		N:           1,
		Stream:      false,
	}

	completions, err := xogen.FanOut(ctx, req.N, c.parallelism, func(ctx context.Context, _ int) (xogen.Tokens, error) {
		return c.complete(ctx, payload, req.Stop)
	})
	if err != nil {
		return nil, err
	}
	return xogen.NewGeneration(c.ID(), c.modelName, xogen.Text(req.Prompt), completions, req.N)
}

func (c *Client) complete(ctx context.Context, payload groqChatCompletionRequest, stop []string) (xogen.Tokens, error) {
	var groqResp groqChatCompletionResponse
	requestID, err := httpjson.Do(ctx, c.httpClient, http.MethodPost, c.baseURL+chatCompletionPath, c.header(), payload, &groqResp)
	if err != nil {
		c.logger.Debug("Groq request failed", "request_id", requestID, "error", err)
		return xogen.Tokens{}, httpjson.Classify(c.ID(), err)
	}

	if groqResp.Error != nil {
		return xogen.Tokens{}, xogen.BackendErrorf(c.ID(), false, "groq API error: %s (Type: %s, Code: %s)", groqResp.Error.Message, groqResp.Error.Type, groqResp.Error.Code)
	}
	if len(groqResp.Choices) == 0 {
		return xogen.Tokens{}, xogen.BackendErrorf(c.ID(), false, "groq response %s contained no choices", groqResp.ID)
	}

	choice := groqResp.Choices[0]
	c.logger.Debug("Groq completion received",
		"request_id", requestID,
		"id", groqResp.ID,
		"finish_reason", choice.FinishReason,
		"completion_tokens", groqResp.Usage.CompletionTokens)
	return xogen.TruncateAtStop(xogen.Text(choice.Message.Content), stop), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
