package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept as its message.
const maxErrorBody = 64 << 10

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig matches the backend contract: 10s per attempt, three retries
// starting at one second and doubling.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    8 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Policy returns the retry policy described by the config.
func (c Config) Policy() Policy {
	return Policy{MaxRetries: c.MaxRetries, WaitMin: c.RetryWaitMin, WaitMax: c.RetryWaitMax}
}

// Client wraps http.Client with retry for idempotent requests.
type Client struct {
	httpClient *http.Client
	config     Config
}

func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config: cfg,
	}
}

// NewWithHTTPClient uses hc as-is. Tests pass httptest clients here.
func NewWithHTTPClient(hc *http.Client, cfg Config) *Client {
	return &Client{httpClient: hc, config: cfg}
}

// Do executes req. GET and HEAD are retried on network errors and 5xx
// responses; every other method is sent exactly once.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	if !isIdempotent(req.Method) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http %s %s: %w", req.Method, req.URL.Path, err)
		}
		return resp, nil
	}

	var resp *http.Response
	attempts := 0
	err := Retry(ctx, c.config.Policy(), func(ctx context.Context) error {
		attempts++
		r, err := c.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			if isRetryableError(err) {
				return err
			}
			return Permanent(err)
		}
		if r.StatusCode >= 500 && r.StatusCode != http.StatusNotImplemented {
			resp = r
			return &StatusError{Status: r.StatusCode, Message: drainBody(r.Body)}
		}
		resp = r
		return nil
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, fmt.Errorf("http request failed after %d attempts: %w", attempts, err)
	}
	return resp, nil
}

// Get performs an HTTP GET request with retry.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// drainBody reads the start of an error body and closes it.
func drainBody(body io.ReadCloser) string {
	defer func() { _ = body.Close() }()
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return string(bytes.TrimSpace(data))
}

func isIdempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
