// Package http is the transport layer of the Kore client: request shaping
// through interceptors, JSON encoding, and retries via go-retryablehttp.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/auth"
	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/hashicorp/go-retryablehttp"
)

const defaultUserAgent = "kore-client/go"

// Logger is the logging contract of the transport.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request is a single API call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
}

// Response is the transport envelope of a completed call.
type Response struct {
	StatusCode int
	Headers    nethttp.Header
	Body       []byte
}

// Client performs API calls against a base URL.
type Client struct {
	baseURL      string
	retryClient  *retryablehttp.Client
	tokenManager auth.TokenManager
	interceptors *kore.InterceptorChain
	logger       Logger
	userAgent    string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
		c.retryClient.Logger = &leveledLogger{logger: logger}
	}
}

// WithTimeout bounds every attempt, including connection setup and reading
// the response body.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.retryClient.HTTPClient.Timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig enables transport retries for 5xx, 429 and connection
// errors.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryClient.RetryMax = retryMax
		c.retryClient.RetryWaitMin = waitMin
		c.retryClient.RetryWaitMax = waitMax
	}
}

// WithInterceptors appends the chain's interceptors after the built-in ones.
func WithInterceptors(chain *kore.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(httpClient *nethttp.Client) Option {
	return func(c *Client) {
		c.retryClient.HTTPClient = httpClient
	}
}

// NewClient creates a transport for baseURL. A nil tokenManager sends
// requests without an Authorization header.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = 0
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		retryClient:  retryClient,
		tokenManager: tokenManager,
		userAgent:    defaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the base URL requests are addressed to before shaping.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs the request. A response with status >= 400 is returned along
// with a *kore.TransportError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	shaped, err := c.shape(ctx, req)
	if err != nil {
		return nil, err
	}

	target := shaped.BaseURL + shaped.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body interface{}
	if len(shaped.Body) > 0 {
		body = shaped.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, shaped.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header = shaped.Headers

	httpResp, err := c.retryClient.Do(httpReq)
	if err != nil {
		c.intercept(ctx, shaped, &kore.Response{Error: err})

		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	if httpResp.StatusCode >= nethttp.StatusBadRequest {
		transportErr := &kore.TransportError{StatusCode: httpResp.StatusCode, Body: respBody}
		c.intercept(ctx, shaped, &kore.Response{StatusCode: resp.StatusCode, Headers: resp.Headers, Body: respBody, Error: transportErr})

		return resp, transportErr
	}

	c.intercept(ctx, shaped, &kore.Response{StatusCode: resp.StatusCode, Headers: resp.Headers, Body: respBody})

	return resp, nil
}

// shape encodes the body and runs the request interceptors.
func (c *Client) shape(ctx context.Context, req *Request) (*kore.Request, error) {
	shaped := &kore.Request{
		Method:  req.Method,
		BaseURL: c.baseURL,
		Path:    req.Path,
		Headers: make(nethttp.Header),
	}

	shaped.Headers.Set("Accept", "application/json")
	shaped.Headers.Set("User-Agent", c.userAgent)

	if req.Body != nil {
		var (
			data []byte
			err  error
		)

		if raw, ok := req.Body.(json.RawMessage); ok {
			data = raw
		} else {
			data, err = json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("encoding request body: %w", err)
			}
		}

		shaped.Body = data
		shaped.Headers.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		shaped.Headers.Set(key, value)
	}

	if c.tokenManager != nil {
		err := kore.AuthenticationInterceptor(c.tokenManager.GetToken)(ctx, shaped)
		if err != nil {
			return nil, fmt.Errorf("authenticating request: %w", err)
		}
	}

	if c.interceptors != nil {
		err := c.interceptors.ExecuteRequestInterceptors(ctx, shaped)
		if err != nil {
			return nil, err
		}
	}

	return shaped, nil
}

func (c *Client) intercept(ctx context.Context, req *kore.Request, resp *kore.Response) {
	if c.interceptors == nil {
		return
	}

	err := c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
	if err != nil && c.logger != nil {
		c.logger.Warn("response interceptor failed", map[string]interface{}{"error": err.Error()})
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodGet, Path: path, Query: query})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodDelete, Path: path})
}

// leveledLogger forwards go-retryablehttp warnings and errors; its per
// attempt debug chatter is dropped.
type leveledLogger struct {
	logger Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fields(keysAndValues))
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fields(keysAndValues))
}

func (l *leveledLogger) Info(string, ...interface{}) {}

func (l *leveledLogger) Debug(string, ...interface{}) {}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		out[key] = keysAndValues[i+1]
	}

	return out
}
