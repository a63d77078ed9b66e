package ports

import (
	"fmt"
	"net/http"
	"time"
)

// HTTPClient abstracts outbound HTTP for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClientConfig holds configuration for HTTP client
type HTTPClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
}

// RealHTTPClient implements HTTPClient using the standard HTTP client.
// Transport errors and 5xx responses to idempotent requests are retried.
type RealHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

// NewRealHTTPClient creates a new real HTTP client implementation
func NewRealHTTPClient(config HTTPClientConfig) *RealHTTPClient {
	return &RealHTTPClient{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Do executes an HTTP request
func (c *RealHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	retries := c.config.MaxRetries
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		resp, err := c.client.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 500 && attempt < retries:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server responded %s", resp.Status)
		default:
			return resp, nil
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		default:
		}

		if attempt < retries && c.config.RetryDelay > 0 {
			time.Sleep(c.config.RetryDelay)
		}
	}

	return nil, lastErr
}
