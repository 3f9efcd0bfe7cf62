// Package claude provides a generation provider for Anthropic's Messages API
// using the official SDK.
//
// The Messages API returns one completion per call, so n completions come
// from concurrent calls. Temperatures above the API maximum of 1 are clamped
// to 1. No per-token detail is available. Generate works without Initialize;
// Initialize verifies the API key.
package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/xostack/xogen"
	xlog "github.com/xostack/xogen/internal/log"
)

const (
	// defaultAnthropicModel is the model used when no override is provided.
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"

	// defaultMaxTokens is sent when the request leaves MaxTokens unset; the
	// Messages API requires a value.
	defaultMaxTokens = 4096

	// defaultMaxRetries is the number of automatic SDK retries on 429 and 5xx.
	defaultMaxRetries = 2

	providerName       = "claude"
	maxTemperature     = 1.0
	defaultParallelism = 4
)

// Client implements xogen.Provider using the Anthropic SDK.
type Client struct {
	client      anthropic.Client
	model       string
	parallelism int
	logger      *slog.Logger
}

var _ xogen.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL     string
	maxRetries  int
	parallelism int
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		c.baseURL = u
	}
}

// WithMaxRetries sets the SDK's retry count for transient errors.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// WithParallelism bounds the number of concurrent calls per Generate.
func WithParallelism(n int) Option {
	return func(c *clientConfig) {
		c.parallelism = n
	}
}

// NewClient creates a Claude client. An empty apiKey falls back to
// ANTHROPIC_API_KEY.
func NewClient(apiKey string, modelOverride string, requestTimeoutSeconds int, debugMode bool, opts ...Option) (*Client, error) {
	cfg := clientConfig{maxRetries: defaultMaxRetries, parallelism: defaultParallelism}
	for _, o := range opts {
		o(&cfg)
	}

	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("claude: ANTHROPIC_API_KEY not set and no API key provided")
	}

	model := defaultAnthropicModel
	if modelOverride != "" {
		model = modelOverride
	}

	timeout := time.Duration(requestTimeoutSeconds) * time.Second
	if requestTimeoutSeconds <= 0 {
		timeout = 60 * time.Second
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
		option.WithRequestTimeout(timeout),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}

	logger := xlog.Provider(debugMode, providerName)
	logger.Debug("Claude client created", "model", model, "max_retries", cfg.maxRetries)

	return &Client{
		client:      anthropic.NewClient(clientOpts...),
		model:       model,
		parallelism: cfg.parallelism,
		logger:      logger,
	}, nil
}

// ID returns "claude:<model>".
func (c *Client) ID() string {
	return providerName + ":" + c.model
}

// Name returns a display label for this client.
func (c *Client) Name() string {
	return fmt.Sprintf("Claude (%s)", c.model)
}

// Initialize verifies the API key by listing a single model.
func (c *Client) Initialize(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1)}); err != nil {
		return xogen.ConfigError(c.ID(), fmt.Errorf("failed to verify Anthropic credentials: %w", err))
	}
	return nil
}

// Generate issues req.N Messages API calls concurrently.
func (c *Client) Generate(ctx context.Context, req xogen.Request) (*xogen.Generation, error) {
	if err := xogen.ValidateRequest(c.ID(), req); err != nil {
		return nil, err
	}

	temperature := req.Temperature
	if temperature > maxTemperature {
		c.logger.Debug("clamping temperature", "requested", temperature, "max", maxTemperature)
		temperature = maxTemperature
	}

	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	completions, err := xogen.FanOut(ctx, req.N, c.parallelism, func(ctx context.Context, _ int) (xogen.Tokens, error) {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
			Temperature: anthropic.Float(temperature),
		}
		if len(req.Stop) > 0 {
			params.StopSequences = req.StopSequences()
		}

		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return xogen.Tokens{}, c.classify(err)
		}

		var sb strings.Builder
		for _, block := range msg.Content {
			if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
				sb.WriteString(variant.Text)
			}
		}
		c.logger.Debug("Claude completion received", "id", msg.ID, "stop_reason", msg.StopReason, "output_tokens", msg.Usage.OutputTokens)
		return xogen.TruncateAtStop(xogen.Text(sb.String()), req.Stop), nil
	})
	if err != nil {
		return nil, err
	}
	return xogen.NewGeneration(c.ID(), c.model, xogen.Text(req.Prompt), completions, req.N)
}

func (c *Client) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusBadRequest, code == http.StatusNotFound,
			code == http.StatusRequestEntityTooLarge, code == http.StatusUnprocessableEntity:
			return xogen.InvalidRequestError(c.ID(), err)
		case code == http.StatusTooManyRequests, code >= 500:
			return xogen.BackendError(c.ID(), true, err)
		default:
			return xogen.BackendError(c.ID(), false, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return xogen.BackendError(c.ID(), false, err)
	}
	return xogen.BackendError(c.ID(), true, fmt.Errorf("claude: completion failed: %w", err))
}

// Model returns the model configured for this client.
func (c *Client) Model() string {
	return c.model
}
