package reader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oiflow/config"
)

func testClient() *http.Client {
	return NewHTTPClient(config.ReaderConfig{
		Timeout:   5 * time.Second,
		UserAgent: "oiflow-test",
		ConnectionPool: config.ConnectionPoolConfig{
			MaxIdleConns:    2,
			MaxConnsPerHost: 2,
			IdleConnTimeout: time.Second,
		},
	})
}

func TestGetJSONSetsUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "oiflow-test" {
			t.Errorf("unexpected user agent: %q", got)
		}
		w.Write([]byte(`{"value": 42}`))
	}))
	defer server.Close()

	var out struct {
		Value int `json:"value"`
	}
	if err := GetJSON(context.Background(), testClient(), "test", server.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Value != 42 {
		t.Fatalf("unexpected value: %d", out.Value)
	}
}

func TestGetJSONStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var out map[string]interface{}
	err := GetJSON(context.Background(), testClient(), "test", server.URL, &out)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Message != "maintenance" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestRateLimitDetection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
	}))
	defer server.Close()

	var out map[string]interface{}
	plain := testClient()
	if err := GetJSON(context.Background(), plain, "test", server.URL, &out); errors.Is(err, ErrRateLimited) {
		t.Fatalf("plain client must not classify 429 as fatal rate limit")
	}

	limited := WithRateLimitDetection(plain, "binance")
	err := GetJSON(context.Background(), limited, "binance", server.URL, &out)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if plain.Transport == limited.Transport {
		t.Fatalf("rate limit detection must not modify the shared client")
	}
}

func TestRateLimitReportingIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"retCode":10006,"retMsg":"Too many visits!"}`))
	}))
	defer server.Close()

	client := WithRateLimitReporting(testClient(), "bybit")
	resp, err := client.Get(server.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected an error for HTTP 429")
	}
	if IsFatal(err) {
		t.Fatalf("bulk source rate limit must not be fatal: %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests || statusErr.Exchange != "bybit" {
		t.Fatalf("expected 429 StatusError, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{fmt.Errorf("binance: %w", ErrRateLimited), true},
		{fmt.Errorf("binance exchange info: %w: %w", ErrListingFailed, errors.New("500")), true},
		{&StatusError{Exchange: "okx", StatusCode: http.StatusTooManyRequests}, false},
		{errors.New("connection reset"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsFatal(c.err); got != c.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", c.err, got, c.fatal)
		}
	}
}

func TestParseOpenInterest(t *testing.T) {
	cases := []struct {
		raw   string
		want  float64
		valid bool
	}{
		{"1234.5", 1234.5, true},
		{" 0 ", 0, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"-Infinity", 0, false},
		{"-5", 0, false},
	}
	for _, c := range cases {
		got, err := ParseOpenInterest(c.raw)
		if (err == nil) != c.valid || got != c.want {
			t.Errorf("ParseOpenInterest(%q) = %v, %v", c.raw, got, err)
		}
	}
}
