// Package processor turns the per-source open interest of a run into the
// alert buckets: aggregation, relative change and outlier classification.
package processor

import (
	"sort"

	"oiflow/internal/models"
)

// Aggregate sums every contribution per coin. Failed or empty results add
// nothing, and a coin no source reported has no entry. Values are summed in
// ascending order so the totals do not depend on the order sources finished.
func Aggregate(results []models.SourceResult) models.AggregatedOI {
	values := make(map[models.Coin][]float64)
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, c := range res.Contributions {
			switch v := c.(type) {
			case models.SingleContribution:
				values[v.Coin] = append(values[v.Coin], v.Value)
			case models.ListContribution:
				for _, e := range v.Entries {
					values[e.Coin] = append(values[e.Coin], e.Value)
				}
			}
		}
	}

	out := make(models.AggregatedOI, len(values))
	for coin, vs := range values {
		out[coin] = sortedSum(vs)
	}
	return out
}

func sortedSum(vs []float64) float64 {
	sort.Float64s(vs)
	var total float64
	for _, v := range vs {
		total += v
	}
	return total
}
