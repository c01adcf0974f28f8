package binancemetrics

import (
	"net/http"
	"sync"
	"testing"

	"oiflow/internal/metrics"
)

func TestWeightTrackerKeepsPeak(t *testing.T) {
	tracker := NewWeightTracker()

	var wg sync.WaitGroup
	for _, v := range []string{"12", "340", "95"} {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			h := http.Header{}
			h.Set("X-MBX-USED-WEIGHT-1M", v)
			tracker.Observe(h)
		}(v)
	}
	wg.Wait()

	max, ok := tracker.Max()
	if !ok || max != 340 {
		t.Fatalf("unexpected peak: %v %v", max, ok)
	}
}

func TestWeightTrackerIgnoresInvalidHeader(t *testing.T) {
	tracker := NewWeightTracker()
	h := http.Header{}
	h.Set("X-MBX-USED-WEIGHT-1M", "not-a-number")
	tracker.Observe(h)
	tracker.Observe(http.Header{})

	if _, ok := tracker.Max(); ok {
		t.Fatalf("expected no observation")
	}
	if tracker.Report(nil, "binance_oi_reader") {
		t.Fatalf("expected nothing reported")
	}
}

func TestWeightTrackerReport(t *testing.T) {
	events := make(chan metrics.Metric, 1)
	id := metrics.RegisterMetricHandler(func(m metrics.Metric) { events <- m })
	t.Cleanup(func() { metrics.UnregisterMetricHandler(id) })

	tracker := NewWeightTracker()
	h := http.Header{}
	h.Set("X-MBX-USED-WEIGHT", "7")
	tracker.Observe(h)

	if !tracker.Report(nil, "binance_oi_reader") {
		t.Fatalf("expected metric to be reported")
	}
	select {
	case m := <-events:
		if m.Name != "used_weight" || m.Value != float64(7) || m.Fields["window"] != "1m" {
			t.Fatalf("unexpected metric: %+v", m)
		}
	default:
		t.Fatal("expected metric event")
	}
}
