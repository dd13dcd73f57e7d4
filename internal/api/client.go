// Package api is the transport client for the students REST backend.
//
// Each of the six operations maps to one HTTP call against the configured
// base URL (host:port plus the /api prefix). A call either returns the
// decoded payload, a *TransportError for a non-2xx response, or a
// *NetworkError when no response arrived. There is no retry: failures go
// straight back to the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aanand-mishra/students-client/internal/types"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the backend the console talks to when nothing is configured.
const DefaultBaseURL = "http://localhost:8085/api"

// Client issues typed requests to the students API. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit throttles outgoing requests to rps per second.
// A non-positive rps leaves requests unthrottled.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a Client for baseURL, e.g. "http://localhost:8085/api".
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the endpoint every path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListAll handles GET /students.
func (c *Client) ListAll(ctx context.Context) ([]types.Student, error) {
	var students []types.Student
	if err := c.do(ctx, "ListAll", http.MethodGet, "/students", nil, &students); err != nil {
		return nil, err
	}
	return nonNil(students), nil
}

// Search handles GET /students/search?q=<query>.
func (c *Client) Search(ctx context.Context, query string) ([]types.Student, error) {
	path := "/students/search?" + url.Values{"q": {query}}.Encode()

	var students []types.Student
	if err := c.do(ctx, "Search", http.MethodGet, path, nil, &students); err != nil {
		return nil, err
	}
	return nonNil(students), nil
}

// GetByID handles GET /students/{id}.
func (c *Client) GetByID(ctx context.Context, id string) (types.Student, error) {
	var student types.Student
	if err := c.do(ctx, "GetByID", http.MethodGet, studentPath(id), nil, &student); err != nil {
		return types.Student{}, err
	}
	return student, nil
}

// Create handles POST /students and returns the record with its new ID.
func (c *Client) Create(ctx context.Context, in types.StudentInput) (types.Student, error) {
	var student types.Student
	if err := c.do(ctx, "Create", http.MethodPost, "/students", in, &student); err != nil {
		return types.Student{}, err
	}
	return student, nil
}

// Update handles PUT /students/{id} and returns the stored record.
func (c *Client) Update(ctx context.Context, id string, in types.StudentInput) (types.Student, error) {
	var student types.Student
	if err := c.do(ctx, "Update", http.MethodPut, studentPath(id), in, &student); err != nil {
		return types.Student{}, err
	}
	return student, nil
}

// Delete handles DELETE /students/{id}. Any response body is discarded.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "Delete", http.MethodDelete, studentPath(id), nil, nil)
}

func studentPath(id string) string {
	return "/students/" + url.PathEscape(id)
}

// do performs one round trip. body is JSON-encoded when non-nil; out is
// decoded from a 2xx response when non-nil and the body is not empty.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	target := c.baseURL + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api.%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("api.%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &NetworkError{Op: op, Method: method, URL: target, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			slog.String("op", op),
			slog.String("method", method),
			slog.String("url", target),
			slog.String("error", err.Error()),
		)
		return &NetworkError{Op: op, Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("request completed",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Op:         op,
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       payload,
			Message:    serverMessage(payload),
		}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("api.%s: decode response: %w", op, err)
	}

	return nil
}

// serverMessage pulls the "error" field out of {"status":"error","error":"..."}.
func serverMessage(payload []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	return envelope.Message
}

func nonNil(students []types.Student) []types.Student {
	if students == nil {
		return []types.Student{}
	}
	return students
}

// IsNotFound reports whether err is a TransportError with status 404.
func IsNotFound(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound
}
