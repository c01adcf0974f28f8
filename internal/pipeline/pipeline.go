// Package pipeline runs one sampling cycle end to end: watchlist, concurrent
// open interest collection, aggregation, diff against the stored snapshot,
// classification, persistence and notification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"oiflow/internal/metrics"
	"oiflow/internal/models"
	"oiflow/internal/processor"
	"oiflow/internal/reader"
	"oiflow/internal/snapshot"
	"oiflow/logger"
)

const component = "pipeline"

// Notifier delivers the classification of a run.
type Notifier interface {
	Notify(ctx context.Context, c models.Classification) error
}

// Options tunes a Runner.
type Options struct {
	// BootstrapOnMissing stores the first snapshot instead of failing when
	// none exists yet. Such a run sends no notification.
	BootstrapOnMissing bool
}

// Runner owns the components of a run. It holds no state between runs.
type Runner struct {
	watchlist  reader.WatchlistSource
	sources    []reader.Source
	store      snapshot.Store
	classifier *processor.Classifier
	notifier   Notifier
	opts       Options
	log        *logger.Log
}

func NewRunner(watchlist reader.WatchlistSource, sources []reader.Source, store snapshot.Store, classifier *processor.Classifier, notifier Notifier, opts Options) *Runner {
	return &Runner{
		watchlist:  watchlist,
		sources:    sources,
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		opts:       opts,
		log:        logger.GetLogger(),
	}
}

// Result describes a completed run.
type Result struct {
	RunID            string
	Watchlist        models.Watchlist
	Aggregated       models.AggregatedOI
	Changes          models.OIChange
	MissingBaselines []models.Coin
	Classification   models.Classification
	// Bootstrapped is set when the run stored the first snapshot and skipped
	// diffing and notification.
	Bootstrapped bool
}

// Run executes one cycle. Any returned error is fatal for the run; when it
// is returned before the snapshot write, nothing was persisted.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log := r.log.WithComponent(component).WithFields(logger.Fields{"run_id": res.RunID})
	log.Info("run started")

	watchlist, err := r.watchlist.FetchWatchlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("build watchlist: %w", err)
	}
	res.Watchlist = watchlist
	log.WithFields(logger.Fields{"coins": len(watchlist)}).Info("watchlist built")

	results, err := r.collect(ctx, res.RunID, watchlist)
	if err != nil {
		return nil, err
	}

	res.Aggregated = processor.Aggregate(results)
	logger.LogDataFlowEntry(log, "sources", "aggregator", len(res.Aggregated), "coins")

	previous, err := r.store.Load(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNotFound) && r.opts.BootstrapOnMissing:
		if err := r.store.Save(ctx, res.Aggregated); err != nil {
			return nil, fmt.Errorf("save bootstrap snapshot: %w", err)
		}
		res.Bootstrapped = true
		log.WithFields(logger.Fields{"coins": len(res.Aggregated)}).Warn("no previous snapshot; stored the first one and skipped notification")
		r.report(res, start)
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}

	res.Changes, res.MissingBaselines = processor.Diff(res.Aggregated, previous)
	for _, coin := range res.MissingBaselines {
		log.WithFields(logger.Fields{"coin": string(coin)}).Warn("no baseline in previous snapshot; coin skipped this run")
	}

	// classification must succeed before the snapshot moves forward
	res.Classification, err = r.classifier.Classify(res.Changes)
	if err != nil {
		return nil, err
	}

	if err := r.store.Save(ctx, res.Aggregated); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	if err := r.notifier.Notify(ctx, res.Classification); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	log.WithFields(logger.Fields{
		"mean":    res.Classification.Mean,
		"stddev":  res.Classification.StdDev,
		"pinned":  len(res.Classification.Pinned),
		"gainers": len(res.Classification.Gainers),
		"losers":  len(res.Classification.Losers),
	}).Info("run completed")
	r.report(res, start)
	return res, nil
}

// collect runs every source concurrently and waits for all of them. A
// source failure only removes its contribution, except a fatal one (see
// reader.IsFatal), which cancels the others and fails the run.
func (r *Runner) collect(ctx context.Context, runID string, watchlist models.Watchlist) ([]models.SourceResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]models.SourceResult, len(r.sources))
	durations := make([]time.Duration, len(r.sources))

	var wg sync.WaitGroup
	for i, src := range r.sources {
		wg.Add(1)
		go func(i int, src reader.Source) {
			defer wg.Done()
			start := time.Now()
			contributions, err := src.FetchOpenInterest(runCtx, watchlist)
			durations[i] = time.Since(start)
			results[i] = models.SourceResult{Source: src.Name(), Contributions: contributions, Err: err}
			if reader.IsFatal(err) {
				cancel()
			}
		}(i, src)
	}
	wg.Wait()

	for _, res := range results {
		if reader.IsFatal(res.Err) {
			return nil, fmt.Errorf("source %s: %w", res.Source, res.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := r.log.WithComponent(component).WithFields(logger.Fields{"run_id": runID})
	for i, res := range results {
		stats := metrics.SourceStats{
			Source:        res.Source,
			Contributions: len(res.Contributions),
			Entries:       countEntries(res.Contributions),
			Failed:        res.Err != nil,
			Duration:      durations[i],
		}
		metrics.ReportSource(r.log, runID, stats)

		if res.Err != nil {
			log.WithFields(logger.Fields{"source": res.Source}).WithError(res.Err).Warn("source failed; continuing without its contribution")
			continue
		}
		log.WithFields(logger.Fields{
			"source":  res.Source,
			"entries": stats.Entries,
		}).Info("source collected")
	}
	return results, nil
}

func countEntries(contributions []models.Contribution) int {
	n := 0
	for _, c := range contributions {
		switch v := c.(type) {
		case models.SingleContribution:
			n++
		case models.ListContribution:
			n += len(v.Entries)
		}
	}
	return n
}

func (r *Runner) report(res *Result, start time.Time) {
	metrics.ReportRun(r.log, res.RunID, metrics.RunStats{
		WatchlistSize:    len(res.Watchlist),
		AggregatedCoins:  len(res.Aggregated),
		MissingBaselines: len(res.MissingBaselines),
		Pinned:           len(res.Classification.Pinned),
		Gainers:          len(res.Classification.Gainers),
		Losers:           len(res.Classification.Losers),
		Duration:         time.Since(start),
	})
}

// Close releases the snapshot store when it holds a connection.
func (r *Runner) Close() error {
	if c, ok := r.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
