// ABOUTME: HTTP client for the research backend's clarification and research endpoints
// ABOUTME: Returns the research response body unread so the caller can decode frames as they arrive

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-research/internal/frame"
)

const (
	feedbackPath = "/api/feedback"
	researchPath = "/api/research"

	// IdempotencyHeader carries a fresh key on every research request.
	IdempotencyHeader = "Idempotency-Key"

	// maxErrorBody caps how much of a failed response is read for its message.
	maxErrorBody = 4096
)

// Backend errors
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrStreamEnded      = errors.New("stream ended before final frame")
	ErrClarification    = errors.New("clarification failed")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// ClarifyRequest is the body sent to the clarification endpoint.
type ClarifyRequest struct {
	Query string `json:"query"`
}

// ClarifyResponse is the body returned by the clarification endpoint, and
// the payload of the final frame in its streaming variant.
type ClarifyResponse struct {
	Questions []string `json:"questions"`
}

// ResearchRequest is the body sent to the research endpoint.
type ResearchRequest struct {
	Query       string `json:"query"`
	Breadth     int    `json:"breadth"`
	Depth       int    `json:"depth"`
	Concurrency int    `json:"concurrency"`
}

// Client talks to the research backend over HTTP.
type Client struct {
	baseURL        string
	http           *http.Client
	clarifyTimeout time.Duration
	maxFrameSize   int
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. It must not set a
// whole-request Timeout, since research responses stream for minutes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClarifyTimeout bounds the clarification call.
func WithClarifyTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.clarifyTimeout = d
	}
}

// WithMaxFrameSize bounds frames decoded from the streaming clarification variant.
func WithMaxFrameSize(n int) Option {
	return func(c *Client) {
		c.maxFrameSize = n
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a backend client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "backend")
	return c
}

// Clarify asks the backend for follow-up questions about query. Both the
// plain JSON response and the event-stream variant are accepted.
func (c *Client) Clarify(ctx context.Context, query string) ([]string, error) {
	if c.clarifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.clarifyTimeout)
		defer cancel()
	}

	resp, err := c.post(ctx, feedbackPath, ClarifyRequest{Query: query}, nil)
	if err != nil {
		return nil, fmt.Errorf("requesting clarification: %w", err)
	}
	defer resp.Body.Close()

	if isEventStream(resp.Header.Get("Content-Type")) {
		return c.readClarifyStream(resp.Body)
	}

	var out ClarifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing clarification response: %w", err)
	}

	c.logger.Debug("clarification received", "questions", len(out.Questions))
	return out.Questions, nil
}

// readClarifyStream consumes frames until the final frame carrying the questions.
func (c *Client) readClarifyStream(body io.Reader) ([]string, error) {
	for f, err := range frame.Decode(body, frame.WithMaxFrameSize(c.maxFrameSize), frame.WithLogger(c.logger)) {
		if err != nil {
			if frame.IsDecodeError(err) {
				c.logger.Warn("skipping malformed clarification frame", "error", err)
				continue
			}
			return nil, fmt.Errorf("reading clarification stream: %w", err)
		}

		switch f.Type {
		case frame.TypeProgress:
			c.logger.Debug("clarification progress", "text", f.Text())
		case frame.TypeError:
			return nil, fmt.Errorf("%w: %s", ErrClarification, f.Text())
		case frame.TypeFinal:
			var out ClarifyResponse
			if err := f.Unmarshal(&out); err != nil {
				return nil, fmt.Errorf("parsing clarification final frame: %w", err)
			}
			c.logger.Debug("clarification received", "questions", len(out.Questions), "streamed", true)
			return out.Questions, nil
		}
	}
	return nil, ErrStreamEnded
}

// Research starts a research job and returns its unread event stream. The
// caller owns the returned body and must close it.
func (c *Client) Research(ctx context.Context, req ResearchRequest) (io.ReadCloser, error) {
	key := uuid.New().String()
	headers := map[string]string{
		"Accept":          "text/event-stream",
		IdempotencyHeader: key,
	}

	resp, err := c.post(ctx, researchPath, req, headers)
	if err != nil {
		return nil, fmt.Errorf("starting research: %w", err)
	}

	c.logger.Debug("research stream opened",
		"idempotency_key", key,
		"breadth", req.Breadth,
		"depth", req.Depth,
		"concurrency", req.Concurrency)
	return resp.Body, nil
}

// post sends a JSON body and returns the response if its status is 2xx.
func (c *Client) post(ctx context.Context, path string, body any, headers map[string]string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

// statusError extracts an error message from a non-2xx response.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	se := &StatusError{StatusCode: resp.StatusCode}

	var errResp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Error != "":
			se.Message = errResp.Error
		case errResp.Detail != "":
			se.Message = errResp.Detail
		}
	}
	if se.Message == "" {
		se.Message = strings.TrimSpace(string(body))
	}
	return se
}

func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/event-stream"
}
