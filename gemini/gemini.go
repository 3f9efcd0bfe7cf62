// Package gemini provides a generation provider for Google's Gemini models.
//
// All n completions come from one request as candidates, up to the API's
// limit of 8; larger n is rejected as invalid. Temperatures above 2 are
// rejected, as are more than 5 stop sequences. Gemini exposes no
// per-token detail, so completions carry text only.
//
// The genai client is created by Initialize. Generate before Initialize
// fails with a configuration error.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xostack/xogen"
	xlog "github.com/xostack/xogen/internal/log"
)

const (
	defaultGeminiModel = "gemma-3-27b-it"
	providerName       = "gemini"
	maxCandidates      = 8
	maxTemperature     = 2.0
	maxStopSequences   = 5
)

// Client implements xogen.Provider for Gemini.
type Client struct {
	apiKey        string
	modelName     string
	timeout       time.Duration
	clientOptions []option.ClientOption
	logger        *slog.Logger

	mu          sync.RWMutex
	genaiClient *genai.Client
}

var _ xogen.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithClientOptions passes extra options such as option.WithEndpoint to the
// underlying genai client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.clientOptions = append(c.clientOptions, opts...)
	}
}

// NewClient creates a new Gemini client. It performs no I/O; the connection
// is made by Initialize.
func NewClient(apiKey string, modelOverride string, requestTimeoutSeconds int, debugMode bool, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	logger := xlog.Provider(debugMode, providerName)

	modelToUse := defaultGeminiModel
	if modelOverride != "" {
		modelToUse = modelOverride
		logger.Debug("using overridden Gemini model", "model", modelToUse)
	} else {
		logger.Debug("using default Gemini model", "model", modelToUse)
	}

	timeout := time.Duration(requestTimeoutSeconds) * time.Second
	if requestTimeoutSeconds <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		apiKey:    apiKey,
		modelName: modelToUse,
		timeout:   timeout,
		logger:    logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ID returns "gemini:<model>".
func (c *Client) ID() string {
	return providerName + ":" + c.modelName
}

// Name returns a display label for this client.
func (c *Client) Name() string {
	return fmt.Sprintf("Gemini (%s)", c.modelName)
}

// Initialize creates the genai client and checks the model exists.
func (c *Client) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.clientOptions...)
	genaiClient, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return xogen.ConfigError(c.ID(), fmt.Errorf("failed to create genai client: %w", err))
	}

	info, err := genaiClient.GenerativeModel(c.modelName).Info(ctx)
	if err != nil {
		_ = genaiClient.Close()
		return xogen.ConfigError(c.ID(), fmt.Errorf("failed to look up Gemini model '%s': %w", c.modelName, err))
	}
	c.logger.Debug("Gemini model available", "model", info.Name, "output_token_limit", info.OutputTokenLimit)

	c.mu.Lock()
	previous := c.genaiClient
	c.genaiClient = genaiClient
	c.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

func (c *Client) client() *genai.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.genaiClient
}

// Generate requests req.N candidates from the Gemini model.
func (c *Client) Generate(ctx context.Context, req xogen.Request) (*xogen.Generation, error) {
	if err := validate(c.ID(), req); err != nil {
		return nil, err
	}

	gc := c.client()
	if gc == nil {
		return nil, xogen.ConfigErrorf(c.ID(), "Gemini client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := gc.GenerativeModel(c.modelName)
	configure(model, req)

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		c.logger.Debug("Gemini request failed", "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, classify(c.ID(), fmt.Errorf("failed to generate content from Gemini: %w", err))
	}

	completions, err := candidateTokens(resp, req.N)
	if err != nil {
		return nil, xogen.BackendError(c.ID(), false, err)
	}
	for i := range completions {
		completions[i] = xogen.TruncateAtStop(completions[i], req.Stop)
	}
	return xogen.NewGeneration(c.ID(), c.modelName, xogen.Text(req.Prompt), completions, req.N)
}

// configure applies an already validated request to model.
func configure(model *genai.GenerativeModel, req xogen.Request) {
	model.SetCandidateCount(int32(req.N))
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens != nil {
		model.SetMaxOutputTokens(int32(*req.MaxTokens))
	}
	model.StopSequences = req.StopSequences()
}

// classify maps a GenerateContent failure onto the error taxonomy. REST
// failures carry a *googleapi.Error, gRPC failures a status code.
func classify(id string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return xogen.BackendError(id, false, err)
	case errors.Is(err, context.DeadlineExceeded):
		return xogen.BackendError(id, true, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.Code; {
		case code == http.StatusBadRequest, code == http.StatusNotFound, code == http.StatusRequestEntityTooLarge:
			return xogen.InvalidRequestError(id, err)
		case code == http.StatusTooManyRequests, code >= 500:
			return xogen.BackendError(id, true, err)
		default:
			return xogen.BackendError(id, false, err)
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.OutOfRange:
			return xogen.InvalidRequestError(id, err)
		case codes.ResourceExhausted, codes.Unavailable, codes.Internal, codes.Aborted, codes.DeadlineExceeded:
			return xogen.BackendError(id, true, err)
		}
	}
	return xogen.BackendError(id, false, err)
}

func validate(id string, req xogen.Request) error {
	if err := xogen.ValidateRequest(id, req); err != nil {
		return err
	}
	if req.N > maxCandidates {
		return xogen.InvalidRequestErrorf(id, "Gemini returns at most %d candidates, got n=%d", maxCandidates, req.N)
	}
	if req.Temperature > maxTemperature {
		return xogen.InvalidRequestErrorf(id, "temperature %v exceeds maximum %v", req.Temperature, maxTemperature)
	}
	if req.MaxTokens != nil && *req.MaxTokens > math.MaxInt32 {
		return xogen.InvalidRequestErrorf(id, "max tokens %d exceeds %d", *req.MaxTokens, math.MaxInt32)
	}
	if len(req.Stop) > maxStopSequences {
		return xogen.InvalidRequestErrorf(id, "at most %d stop sequences are supported, got %d", maxStopSequences, len(req.Stop))
	}
	return nil
}

// candidateTokens extracts exactly n text completions from resp, ordered by
// candidate index.
func candidateTokens(resp *genai.GenerateContentResponse, n int) ([]xogen.Tokens, error) {
	if resp == nil {
		return nil, fmt.Errorf("Gemini response was empty")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return nil, fmt.Errorf("Gemini prompt blocked: %s", resp.PromptFeedback.BlockReason.String())
	}
	if len(resp.Candidates) != n {
		return nil, fmt.Errorf("Gemini returned %d candidates, want %d", len(resp.Candidates), n)
	}

	candidates := make([]*genai.Candidate, len(resp.Candidates))
	copy(candidates, resp.Candidates)
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Index < candidates[j].Index })

	out := make([]xogen.Tokens, 0, n)
	for i, cand := range candidates {
		if cand == nil {
			return nil, fmt.Errorf("Gemini candidate %d is missing", i)
		}
		if cand.FinishReason == genai.FinishReasonSafety {
			return nil, fmt.Errorf("Gemini content generation blocked due to safety settings (candidate %d)", cand.Index)
		}
		var sb strings.Builder
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if txt, ok := part.(genai.Text); ok {
					sb.WriteString(string(txt))
				}
			}
		}
		out = append(out, xogen.Text(sb.String()))
	}
	return out, nil
}

// Close cleans up the genai client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.genaiClient != nil {
		err := c.genaiClient.Close()
		c.genaiClient = nil
		return err
	}
	return nil
}
