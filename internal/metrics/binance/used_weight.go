package binancemetrics

import (
	"net/http"
	"strconv"
	"sync"

	"oiflow/internal/metrics"
	"oiflow/logger"
)

// weightHeaders lists the used-weight headers Binance returns, most specific
// first.
var weightHeaders = []struct {
	key    string
	window string
}{
	{"X-MBX-USED-WEIGHT-1M", "1m"},
	{"X-MBX-USED-WEIGHT", "1m"},
}

// WeightTracker keeps the highest request weight Binance reported during a
// run. It is safe for concurrent use.
type WeightTracker struct {
	mu       sync.Mutex
	max      float64
	window   string
	observed int
}

func NewWeightTracker() *WeightTracker {
	return &WeightTracker{}
}

// Observe records the used weight carried by header, if any.
func (t *WeightTracker) Observe(header http.Header) {
	for _, h := range weightHeaders {
		value := header.Get(h.key)
		if value == "" {
			continue
		}
		used, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return
		}

		t.mu.Lock()
		t.observed++
		if used > t.max {
			t.max = used
			t.window = h.window
		}
		t.mu.Unlock()
		return
	}
}

// Max returns the peak weight and whether any header was seen.
func (t *WeightTracker) Max() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max, t.observed > 0
}

// Report emits the peak used weight. Nothing is emitted when no response
// carried the header.
func (t *WeightTracker) Report(log *logger.Log, component string) bool {
	t.mu.Lock()
	max, window, observed := t.max, t.window, t.observed
	t.mu.Unlock()

	if observed == 0 {
		return false
	}
	metrics.EmitMetric(log, component, "used_weight", max, "gauge", logger.Fields{
		"exchange": "binance",
		"window":   window,
	})
	return true
}
