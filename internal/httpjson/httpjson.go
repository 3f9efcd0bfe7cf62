// Package httpjson sends JSON requests to provider backends and classifies
// their failures into the xogen error taxonomy.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/xostack/xogen"
)

// RequestIDHeader carries a per-request identifier so backend logs can be
// correlated with ours.
const RequestIDHeader = "X-Request-Id"

const maxResponseBytes = 32 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	// Message is the backend's own error message when the body carried one.
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API request failed with status %s. Raw: %s", e.Status, string(e.Body))
}

// TransportError is returned when the request never produced a response.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send request to %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned when a 2xx body is not the expected JSON.
type DecodeError struct {
	Err  error
	Body []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to unmarshal response JSON: %v. Raw response: %s", e.Err, string(e.Body))
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Do sends payload (if non-nil) as a JSON body and decodes a successful
// response into out (if non-nil). It returns the request ID it used.
func Do(ctx context.Context, client *http.Client, method, url string, header http.Header, payload, out any) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := client.Do(req)
	if err != nil {
		return requestID, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return requestID, &TransportError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return requestID, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    errorMessage(raw),
			Body:       raw,
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return requestID, &DecodeError{Err: err, Body: raw}
		}
	}
	return requestID, nil
}

// errorMessage extracts {"error": "..."} (Ollama) or
// {"error": {"message": "..."}} (OpenAI-compatible) bodies.
func errorMessage(raw []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) != nil || len(envelope.Error) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(envelope.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &obj) == nil {
		return obj.Message
	}
	return ""
}

// Classify maps an error from Do onto the generate-time error kinds.
//
//   - 400, 404, 413, 422: invalid request
//   - 429, 5xx, transport failures, deadlines: transient backend failure
//   - anything else: backend failure
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusBadRequest,
			se.StatusCode == http.StatusNotFound,
			se.StatusCode == http.StatusRequestEntityTooLarge,
			se.StatusCode == http.StatusUnprocessableEntity:
			return xogen.InvalidRequestError(provider, err)
		case se.StatusCode == http.StatusTooManyRequests, se.StatusCode >= 500:
			return xogen.BackendError(provider, true, err)
		default:
			return xogen.BackendError(provider, false, err)
		}
	}

	if errors.Is(err, context.Canceled) {
		return xogen.BackendError(provider, false, fmt.Errorf("request canceled: %w", err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return xogen.BackendError(provider, true, fmt.Errorf("request timed out: %w", err))
	}

	var te *TransportError
	if errors.As(err, &te) {
		return xogen.BackendError(provider, true, err)
	}
	return xogen.BackendError(provider, false, err)
}
