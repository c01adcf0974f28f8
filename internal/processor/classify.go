package processor

import (
	"fmt"
	"sort"
	"strings"

	appconfig "oiflow/config"
	"oiflow/internal/models"
)

// Classifier sorts coins into the pinned, gainer and loser buckets.
type Classifier struct {
	pinned    map[models.Coin]struct{}
	threshold float64
}

// NewClassifier builds a classifier from the configured pinned coins and the
// number of standard deviations a change must clear to be an outlier.
func NewClassifier(cfg appconfig.ClassifierConfig) *Classifier {
	pinned := make(map[models.Coin]struct{}, len(cfg.Pinned))
	for _, p := range cfg.Pinned {
		pinned[models.Coin(strings.ToUpper(strings.TrimSpace(p)))] = struct{}{}
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 1
	}
	return &Classifier{pinned: pinned, threshold: threshold}
}

// Classify places every coin in at most one bucket, testing pinned first,
// then gainers (change >= mean + k*sd), then losers (change <= mean - k*sd).
// Statistics cover every change, pinned coins included. When all changes are
// identical the deviation is zero and no coin is an outlier.
//
// Pinned coins are ordered by name, gainers by change descending and losers
// by change ascending; ties fall back to the coin name.
func (c *Classifier) Classify(changes models.OIChange) (models.Classification, error) {
	values := make([]float64, 0, len(changes))
	for _, v := range changes {
		values = append(values, v)
	}
	mean, sd, err := MeanStdDev(values)
	if err != nil {
		return models.Classification{}, fmt.Errorf("classify %d coins: %w", len(changes), err)
	}

	out := models.Classification{Mean: mean, StdDev: sd}
	upper := mean + c.threshold*sd
	lower := mean - c.threshold*sd

	for coin, change := range changes {
		cc := models.CoinChange{Coin: coin, Change: change}
		switch {
		case c.isPinned(coin):
			out.Pinned = append(out.Pinned, cc)
		case sd == 0:
		case change >= upper:
			out.Gainers = append(out.Gainers, cc)
		case change <= lower:
			out.Losers = append(out.Losers, cc)
		}
	}

	sort.Slice(out.Pinned, func(i, j int) bool { return out.Pinned[i].Coin < out.Pinned[j].Coin })
	sort.Slice(out.Gainers, func(i, j int) bool {
		a, b := out.Gainers[i], out.Gainers[j]
		if a.Change != b.Change {
			return a.Change > b.Change
		}
		return a.Coin < b.Coin
	})
	sort.Slice(out.Losers, func(i, j int) bool {
		a, b := out.Losers[i], out.Losers[j]
		if a.Change != b.Change {
			return a.Change < b.Change
		}
		return a.Coin < b.Coin
	})
	return out, nil
}

func (c *Classifier) isPinned(coin models.Coin) bool {
	_, ok := c.pinned[coin]
	return ok
}
