// Package reader holds what every exchange adapter shares: the source
// contracts, the HTTP session of a run and the error kinds the pipeline
// inspects.
package reader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"oiflow/internal/models"
)

// ErrRateLimited is returned when a per-symbol query answers with HTTP 429.
// It aborts the whole run.
var ErrRateLimited = errors.New("exchange rate limit exceeded")

// ErrListingFailed is returned when a source cannot list the contracts it
// would query one by one. Without the listing the source's coverage is
// unknown, so it aborts the whole run.
var ErrListingFailed = errors.New("contract listing unavailable")

// IsFatal reports whether err from a Source must abort the run rather than
// only drop that source's contribution.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrListingFailed)
}

// ParseOpenInterest parses an open interest quantity as exchanges send it.
// NaN, infinities and negative values are rejected.
func ParseOpenInterest(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse open interest %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("open interest %q out of range", raw)
	}
	return v, nil
}

// StatusError reports a non-success HTTP status or exchange return code.
type StatusError struct {
	Exchange   string
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d code %s: %s", e.Exchange, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Exchange, e.StatusCode, e.Message)
}

// WatchlistSource builds the set of coins tracked by a run.
type WatchlistSource interface {
	FetchWatchlist(ctx context.Context) (models.Watchlist, error)
}

// Source reports open interest for the coins of a watchlist. Coins outside
// the watchlist are never reported.
type Source interface {
	Name() string
	FetchOpenInterest(ctx context.Context, watchlist models.Watchlist) ([]models.Contribution, error)
}
