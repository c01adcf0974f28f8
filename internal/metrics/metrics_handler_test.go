package metrics

import (
	"testing"
	"time"

	"oiflow/logger"
)

func resetMetricHandlers() {
	handlersMu.Lock()
	handlers = make(map[MetricHandlerID]MetricHandler)
	nextHandlerID = 0
	handlersMu.Unlock()
}

func TestRegisterMetricHandlerReturnsUniqueIDs(t *testing.T) {
	resetMetricHandlers()

	id := RegisterMetricHandler(func(Metric) {})
	if id == 0 {
		t.Fatalf("expected non-zero handler id")
	}
	second := RegisterMetricHandler(func(Metric) {})
	if second == 0 || second == id {
		t.Fatalf("expected unique handler id")
	}
	if RegisterMetricHandler(nil) != 0 {
		t.Fatalf("expected zero id for nil handler")
	}
}

func TestEmitMetricDispatchesToHandlers(t *testing.T) {
	resetMetricHandlers()

	events := make(chan Metric, 1)
	id := RegisterMetricHandler(func(m Metric) { events <- m })
	t.Cleanup(func() { UnregisterMetricHandler(id) })

	fields := logger.Fields{"source": "bybit"}
	EmitMetric(logger.Logger(), "oiflow_run", "source_entries", 3, "gauge", fields)

	select {
	case event := <-events:
		if event.Component != "oiflow_run" || event.Name != "source_entries" || event.Type != "gauge" {
			t.Fatalf("unexpected event: %+v", event)
		}
		if _, ok := fields["metric"]; ok {
			t.Fatalf("original fields mutated: %v", fields)
		}
		if _, ok := event.Fields["metric"]; ok {
			t.Fatalf("event fields should not contain metric key: %v", event.Fields)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("metric handler not invoked")
	}
}

func TestEmitMetricDefaultTypeAndMissingName(t *testing.T) {
	resetMetricHandlers()

	var got []Metric
	id := RegisterMetricHandler(func(m Metric) { got = append(got, m) })
	t.Cleanup(func() { UnregisterMetricHandler(id) })

	EmitMetric(nil, "component", "", 1, "counter", nil)
	EmitMetric(nil, "component", "updates", 7, "", nil)

	if len(got) != 1 {
		t.Fatalf("expected exactly one metric, got %d", len(got))
	}
	if got[0].Type != "counter" {
		t.Fatalf("expected default metric type to be counter, got %s", got[0].Type)
	}
}

func TestReportRunEmitsAllGauges(t *testing.T) {
	resetMetricHandlers()

	seen := map[string]interface{}{}
	id := RegisterMetricHandler(func(m Metric) { seen[m.Name] = m.Value })
	t.Cleanup(func() { UnregisterMetricHandler(id) })

	ReportRun(nil, "run-1", RunStats{WatchlistSize: 3, AggregatedCoins: 3, Gainers: 1, Duration: 2 * time.Second})
	ReportSource(nil, "run-1", SourceStats{Source: "okx", Contributions: 1, Entries: 2, Failed: true})

	for _, name := range []string{"watchlist_size", "aggregated_coins", "missing_baselines", "pinned_coins", "gainer_coins", "loser_coins", "run_duration", "source_contributions", "source_entries", "source_failures", "source_duration"} {
		if _, ok := seen[name]; !ok {
			t.Errorf("metric %s not emitted", name)
		}
	}
	if seen["run_duration"] != float64(2) {
		t.Errorf("unexpected run duration: %v", seen["run_duration"])
	}
}
