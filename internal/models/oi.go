package models

import "sort"

// Coin is a base-asset ticker such as BTC. It is the unit of aggregation
// across exchanges and only ever lives as a map key.
type Coin string

// Watchlist is the set of coins tracked during a run.
type Watchlist map[Coin]struct{}

func NewWatchlist(coins ...Coin) Watchlist {
	w := make(Watchlist, len(coins))
	for _, c := range coins {
		w.Add(c)
	}
	return w
}

func (w Watchlist) Add(c Coin) { w[c] = struct{}{} }

func (w Watchlist) Contains(c Coin) bool {
	_, ok := w[c]
	return ok
}

// Sorted returns the coins in lexical order.
func (w Watchlist) Sorted() []Coin {
	out := make([]Coin, 0, len(w))
	for c := range w {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contribution is the open interest one source reported during a run. It is
// either a SingleContribution or a ListContribution.
type Contribution interface {
	contribution()
}

// SingleContribution carries the open interest of one coin, as produced by
// per-symbol queries.
type SingleContribution struct {
	Coin  Coin
	Value float64
}

// Entry is one coin/value pair inside a ListContribution.
type Entry struct {
	Coin  Coin
	Value float64
}

// ListContribution carries the filtered result of a bulk ticker query.
type ListContribution struct {
	Source  string
	Entries []Entry
}

func (SingleContribution) contribution() {}
func (ListContribution) contribution()   {}

// SourceResult is the outcome of one adapter invocation: either the
// contributions it produced or the reason it failed.
type SourceResult struct {
	Source        string
	Contributions []Contribution
	Err           error
}

// AggregatedOI maps each coin to its open interest summed over every source
// that reported it. Coins no source reported have no entry.
type AggregatedOI map[Coin]float64

// Snapshot is the AggregatedOI persisted by the previous run.
type Snapshot = AggregatedOI

// OIChange maps each coin to its relative open interest change.
type OIChange map[Coin]float64

// CoinChange is one line of a classification bucket.
type CoinChange struct {
	Coin   Coin
	Change float64
}

// Classification holds the three disjoint alert buckets and the statistics
// used to build them.
type Classification struct {
	Pinned  []CoinChange
	Gainers []CoinChange
	Losers  []CoinChange

	Mean   float64
	StdDev float64
}
