// Package gpservice implements gpjob.RemoteClient against the HTTP API of
// the analysis service (and the bundled simulator, which speaks the same
// protocol).
package gpservice

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

	"golang.org/x/time/rate"

	"geotask/pkg/gpjob"
)

const (
	// DefaultBaseURL points at a locally running simulator.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultTimeout bounds every single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the request budget per second. Status polling is
	// chatty; the limiter keeps a misconfigured poll interval from hammering
	// the service.
	DefaultRateLimit = 10
)

// Client talks to the analysis service. It implements gpjob.RemoteClient and
// is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets the service address.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sets the key sent as X-Api-Key on every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the per-second request budget.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates an analysis service client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "gpservice.client")

	return c
}

// APIError is a non-2xx answer from the analysis service.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis service error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Submit implements gpjob.RemoteClient. Any failure to place the job is a
// submission error; the lifecycle never starts on a handle we do not have.
func (c *Client) Submit(ctx context.Context, params gpjob.Parameters) (gpjob.Handle, error) {
	body := SubmitRequest{Mode: string(params.Mode()), Inputs: encodeInputs(params)}

	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/analyses", body, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return "", gpjob.Submission(apiErr.Message, err)
		}
		return "", gpjob.Submission(fmt.Sprintf("analysis service unreachable: %v", err), err)
	}
	if resp.JobID == "" {
		return "", gpjob.Submission("analysis service returned no job handle", nil)
	}
	return gpjob.Handle(resp.JobID), nil
}

// FetchStatus implements gpjob.RemoteClient. Transport failures and 5xx
// answers are transient; a 4xx answer means the service no longer knows the
// handle and the job cannot recover.
func (c *Client) FetchStatus(ctx context.Context, handle gpjob.Handle) (gpjob.StatusSnapshot, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/v1/analyses/"+url.PathEscape(string(handle)), nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return gpjob.StatusSnapshot{}, gpjob.Service(handle, apiErr.Message)
		}
		return gpjob.StatusSnapshot{}, gpjob.Communication("client.fetchStatus", err)
	}

	status, ok := MapStatus(resp.JobStatus)
	if !ok {
		return gpjob.StatusSnapshot{}, gpjob.Service(handle, fmt.Sprintf("service reported unknown status %q", resp.JobStatus))
	}
	return gpjob.StatusSnapshot{Status: status, Message: resp.Message}, nil
}

// FetchResult implements gpjob.RemoteClient.
func (c *Client) FetchResult(ctx context.Context, handle gpjob.Handle) (*gpjob.ResultPayload, error) {
	var resp ResultResponse
	err := c.do(ctx, http.MethodGet, "/v1/analyses/"+url.PathEscape(string(handle))+"/result", nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.StatusCode == http.StatusConflict:
				return nil, &gpjob.Error{
					Sentinel: gpjob.ErrResultUnavailable,
					Message:  apiErr.Message,
					Handle:   handle,
					Cause:    err,
				}
			case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
				return nil, gpjob.Service(handle, apiErr.Message)
			}
		}
		return nil, gpjob.Communication("client.fetchResult", err)
	}
	return &gpjob.ResultPayload{LayerURL: resp.LayerURL, Extent: resp.Extent}, nil
}

// Cancel implements gpjob.RemoteClient. The request is advisory; an error
// only means the stop request did not get through.
func (c *Client) Cancel(ctx context.Context, handle gpjob.Handle) error {
	err := c.do(ctx, http.MethodPost, "/v1/analyses/"+url.PathEscape(string(handle))+"/cancel", nil, nil)
	if err != nil {
		return gpjob.Communication("client.cancel", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	c.logger.Debug("Analysis service request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp),
			Endpoint:   path,
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// readErrorMessage extracts the service's error message, falling back to the
// raw body and then the HTTP status text.
func readErrorMessage(resp *http.Response) string {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var decoded ErrorResponse
	if err := json.Unmarshal(payload, &decoded); err == nil && decoded.Error != "" {
		return decoded.Error
	}
	if msg := strings.TrimSpace(string(payload)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

var _ gpjob.RemoteClient = (*Client)(nil)
