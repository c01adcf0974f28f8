package processor

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDegenerateStatistics is returned when fewer than two changes are
// available to derive a mean and a standard deviation from.
var ErrDegenerateStatistics = errors.New("not enough coins to compute statistics")

// MeanStdDev returns the arithmetic mean and the sample standard deviation
// (n-1 denominator) of values. values is not modified. When every value is
// the same the mean is that value and the deviation is exactly 0; summing
// would otherwise leave rounding noise in both.
func MeanStdDev(values []float64) (mean, stddev float64, err error) {
	n := len(values)
	if n < 2 {
		return 0, 0, fmt.Errorf("%w: got %d", ErrDegenerateStatistics, n)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if sorted[0] == sorted[n-1] {
		return sorted[0], 0, nil
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean = sum / float64(n)

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n-1)), nil
}
