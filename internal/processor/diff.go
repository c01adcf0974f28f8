package processor

import (
	"sort"

	"oiflow/internal/models"
)

// RelativeChange returns (current-previous)/previous, and exactly 0 when the
// two are equal.
func RelativeChange(current, previous float64) float64 {
	if current == previous {
		return 0
	}
	return (current - previous) / previous
}

// Diff computes the relative change of every coin in current against
// previous. Coins without a usable baseline are left out of the result and
// returned separately, sorted. A baseline is unusable when the coin is absent
// from previous or its previous value is not positive while the current one
// differs.
func Diff(current models.AggregatedOI, previous models.Snapshot) (models.OIChange, []models.Coin) {
	changes := make(models.OIChange, len(current))
	var missing []models.Coin

	for coin, cur := range current {
		prev, ok := previous[coin]
		if !ok || (prev <= 0 && cur != prev) {
			missing = append(missing, coin)
			continue
		}
		changes[coin] = RelativeChange(cur, prev)
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return changes, missing
}
