package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"oiflow/config"
	ratemetrics "oiflow/internal/metrics/rate"
)

// userAgentTransport wraps an existing RoundTripper and sets a custom
// User-Agent header on all outgoing requests.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	if t.base != nil {
		return t.base.RoundTrip(req)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// rateLimitTransport turns HTTP 429 answers into errors so SDK clients that
// swallow the status code still surface it. A fatal transport fails with
// ErrRateLimited, any other with a *StatusError.
type rateLimitTransport struct {
	exchange string
	fatal    bool
	base     http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		if !ratemetrics.ReportLimitFromMessage(nil, t.exchange, req.URL.Path, string(body)) {
			ratemetrics.ReportRateLimitExceeded(nil, t.exchange, req.URL.Path)
		}
		msg := strings.TrimSpace(string(body))
		if !t.fatal {
			return nil, &StatusError{Exchange: t.exchange, StatusCode: resp.StatusCode, Message: msg}
		}
		return nil, fmt.Errorf("%s %s: %w: %s", t.exchange, req.URL.Path, ErrRateLimited, msg)
	}
	return resp, nil
}

// NewHTTPClient builds the single HTTP session shared by every call of a run.
func NewHTTPClient(cfg config.ReaderConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        cfg.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.ConnectionPool.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.ConnectionPool.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: userAgentTransport{agent: cfg.UserAgent, base: transport},
		Timeout:   cfg.Timeout,
	}
}

// WithRateLimitDetection returns a client sharing the session of client whose
// 429 answers fail with ErrRateLimited.
func WithRateLimitDetection(client *http.Client, exchange string) *http.Client {
	return wrapRateLimit(client, exchange, true)
}

// WithRateLimitReporting returns a client sharing the session of client whose
// 429 answers are recorded and fail with a *StatusError, like any other
// non-success status.
func WithRateLimitReporting(client *http.Client, exchange string) *http.Client {
	return wrapRateLimit(client, exchange, false)
}

func wrapRateLimit(client *http.Client, exchange string, fatal bool) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.Transport = rateLimitTransport{exchange: exchange, fatal: fatal, base: client.Transport}
	return &c
}

// GetJSON issues a GET request and decodes a 200 response into out. Any other
// status is reported as a *StatusError.
func GetJSON(ctx context.Context, client *http.Client, exchange, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", exchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		reported := ratemetrics.ReportLimitFromMessage(nil, exchange, req.URL.Path, string(body))
		if !reported && resp.StatusCode == http.StatusTooManyRequests {
			ratemetrics.ReportRateLimitExceeded(nil, exchange, req.URL.Path)
		}
		return &StatusError{
			Exchange:   exchange,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", exchange, err)
	}
	return nil
}
