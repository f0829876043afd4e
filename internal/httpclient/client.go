// Package httpclient provides HTTP client functionality for the cluster REST API
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tqrg-bot/ambari-sync/internal/otel"
	"github.com/tqrg-bot/ambari-sync/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/tqrg-bot/ambari-sync/internal/httpclient Client

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response size (100MB)
	MaxResponseSize = 100 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "ambari-sync/1.0"

	// HeaderMethodOverride carries the logical method of a GET-as-POST request
	HeaderMethodOverride = "X-Http-Method-Override"

	// HeaderRequestedBy is required by the server on modifying methods
	HeaderRequestedBy = "X-Requested-By"
)

// ResultHandler receives the (possibly transformed) response body of a successful request
type ResultHandler func(body []byte) error

// Options are the per-request hooks and parameters
type Options struct {
	// Complete runs after every request, on success and on failure
	Complete func()

	// BeforeMap transforms the raw body before it reaches the handler
	BeforeMap func(body []byte) ([]byte, error)

	// Error runs before Complete when the request or its handling fails
	Error func(err error)

	// Params is a compiled query. When set, the request is sent as POST with
	// the query in the body and the method override header set to GET.
	Params string
}

// Client is an interface for HTTP operations
type Client interface {
	// Get performs a read request against url and passes the body to handler
	Get(ctx context.Context, url string, handler ResultHandler, opts Options) error
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client   *http.Client
	baseURL  string
	headers  http.Header
	user     string
	password string
	metrics  *telemetry.TransportMetrics
	tracer   trace.Tracer
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithTimeout sets the request timeout. Zero means DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *DefaultClient) {
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		c.client.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(c *DefaultClient) {
		c.client = client
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) Option {
	return func(c *DefaultClient) {
		c.headers.Set(key, value)
	}
}

// WithBasicAuth sets the credentials sent with every request
func WithBasicAuth(user, password string) Option {
	return func(c *DefaultClient) {
		c.user = user
		c.password = password
	}
}

// WithMetrics sets the transport metrics; nil disables them
func WithMetrics(m *telemetry.TransportMetrics) Option {
	return func(c *DefaultClient) {
		c.metrics = m
	}
}

// WithTracer sets the tracer used for request spans; nil disables tracing
func WithTracer(tracer trace.Tracer) Option {
	return func(c *DefaultClient) {
		c.tracer = tracer
	}
}

// NewDefaultClient creates a client resolving relative URLs against baseURL
func NewDefaultClient(baseURL string, opts ...Option) *DefaultClient {
	c := &DefaultClient{
		client:  &http.Client{Timeout: DefaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: http.Header{},
	}
	c.headers.Set(HeaderRequestedBy, "ambari")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs the request and runs the hooks in order: BeforeMap, handler,
// then Error on failure and Complete in every case.
func (c *DefaultClient) Get(ctx context.Context, url string, handler ResultHandler, opts Options) (err error) {
	if opts.Complete != nil {
		defer opts.Complete()
	}
	defer func() {
		if err != nil {
			slog.Warn("Request failed", "url", url, "error", err)
			if opts.Error != nil {
				opts.Error(err)
			}
		}
	}()

	body, err := c.do(ctx, c.resolve(url), opts.Params)
	if err != nil {
		return err
	}

	if opts.BeforeMap != nil {
		if body, err = opts.BeforeMap(body); err != nil {
			return fmt.Errorf("failed to prepare response: %w", err)
		}
	}

	if handler != nil {
		if err = handler(body); err != nil {
			return fmt.Errorf("failed to handle response: %w", err)
		}
	}
	return nil
}

func (c *DefaultClient) resolve(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") || c.baseURL == "" {
		return url
	}
	return c.baseURL + url
}

type requestInfo struct {
	RequestInfo struct {
		Query string `json:"query"`
	} `json:"RequestInfo"`
}

func (c *DefaultClient) do(ctx context.Context, url, params string) ([]byte, error) {
	method := http.MethodGet
	var reqBody io.Reader
	if params != "" {
		var payload requestInfo
		payload.RequestInfo.Query = params
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request parameters: %w", err)
		}
		method = http.MethodPost
		reqBody = bytes.NewReader(data)
	}

	ctx, span := otel.StartSpan(ctx, c.tracer, "httpclient.Get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(otel.AttrRequestMethod.String(method)),
	)
	defer span.End()

	start := time.Now()
	statusCode := 0
	defer func() {
		c.metrics.RecordRequest(ctx, method, statusCode, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		otel.RecordError(span, err)
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if params != "" {
		req.Header.Set(HeaderMethodOverride, http.MethodGet)
		req.Header.Set("Content-Type", "text/plain")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to execute request: %w", err)
		otel.RecordError(span, err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	statusCode = resp.StatusCode

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = NewHTTPError(resp.StatusCode, url, resp.Status)
		otel.RecordError(span, err)
		return nil, err
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes (%.2f MB)",
			resp.ContentLength, MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	// +1 to detect if limit exceeded
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes (%.2f MB)",
			MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	return body, nil
}
