package rate

import (
	"testing"

	"oiflow/internal/metrics"
)

func TestDetectLimit(t *testing.T) {
	cases := []struct {
		exchange string
		msg      string
		rate     bool
		ban      bool
	}{
		{"binance", `{"code":-1003,"msg":"Too many requests; current limit is 2400"}`, true, false},
		{"binance", "Way too much request weight used; IP banned until 1700000000000", false, true},
		{"okx", "IP has been blocked for 60 seconds", false, true},
		{"okx", "API frequency limit reached", true, false},
		{"bybit", "IP rate limit reached", false, true},
		{"bybit", "Too many visits!", true, false},
		{"unknown", "hello world", false, false},
	}
	for _, c := range cases {
		rl, ban := detectLimit(c.exchange, c.msg)
		if rl != c.rate || ban != c.ban {
			t.Errorf("detectLimit(%s, %q) = (%v, %v), want (%v, %v)", c.exchange, c.msg, rl, ban, c.rate, c.ban)
		}
	}
}

func TestReportLimitFromMessageEmitsMetric(t *testing.T) {
	var names []string
	id := metrics.RegisterMetricHandler(func(m metrics.Metric) { names = append(names, m.Name) })
	t.Cleanup(func() { metrics.UnregisterMetricHandler(id) })

	if !ReportLimitFromMessage(nil, "binance", "/fapi/v1/openInterest", "Too many requests") {
		t.Fatalf("expected a rate limit match")
	}
	if ReportLimitFromMessage(nil, "binance", "/fapi/v1/openInterest", "symbol not found") {
		t.Fatalf("unexpected match")
	}
	if len(names) != 1 || names[0] != "rate_limit_exceeded" {
		t.Fatalf("unexpected metrics: %v", names)
	}
}
