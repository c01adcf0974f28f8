package metrics

import (
	"time"

	"oiflow/logger"
)

const runComponent = "oiflow_run"

// SourceStats summarises one adapter invocation.
type SourceStats struct {
	Source        string
	Contributions int
	Entries       int
	Failed        bool
	Duration      time.Duration
}

// ReportSource emits the per-adapter counters of a run.
func ReportSource(log *logger.Log, runID string, s SourceStats) {
	fields := logger.Fields{"source": s.Source, "run_id": runID}
	EmitMetric(log, runComponent, "source_contributions", s.Contributions, "gauge", fields)
	EmitMetric(log, runComponent, "source_entries", s.Entries, "gauge", fields)
	if s.Failed {
		EmitMetric(log, runComponent, "source_failures", 1, "counter", fields)
	}
	EmitMetric(log, runComponent, "source_duration", s.Duration.Seconds(), "gauge", withUnit(fields, "seconds"))
}

// RunStats summarises a completed run.
type RunStats struct {
	WatchlistSize    int
	AggregatedCoins  int
	MissingBaselines int
	Pinned           int
	Gainers          int
	Losers           int
	Duration         time.Duration
}

// ReportRun emits the end-of-run gauges.
func ReportRun(log *logger.Log, runID string, s RunStats) {
	fields := logger.Fields{"run_id": runID}
	EmitMetric(log, runComponent, "watchlist_size", s.WatchlistSize, "gauge", fields)
	EmitMetric(log, runComponent, "aggregated_coins", s.AggregatedCoins, "gauge", fields)
	EmitMetric(log, runComponent, "missing_baselines", s.MissingBaselines, "gauge", fields)
	EmitMetric(log, runComponent, "pinned_coins", s.Pinned, "gauge", fields)
	EmitMetric(log, runComponent, "gainer_coins", s.Gainers, "gauge", fields)
	EmitMetric(log, runComponent, "loser_coins", s.Losers, "gauge", fields)
	EmitMetric(log, runComponent, "run_duration", s.Duration.Seconds(), "gauge", withUnit(fields, "seconds"))
}

func withUnit(fields logger.Fields, unit string) logger.Fields {
	out := make(logger.Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["unit"] = unit
	return out
}
