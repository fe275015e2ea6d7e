package services

import (
	"math"
	"sort"
)

// DailyStats holds the derived statistics over one day's prices for a
// (category, generation) pair.
type DailyStats struct {
	Count      int
	Avg        float64
	Min        float64
	Max        float64
	Median     float64
	StdDev     float64
	Volatility float64
}

// ComputeDailyStats derives summary statistics from a day's prices. StdDev is
// the sample standard deviation; Volatility is the coefficient of variation
// (stddev/avg*100) and is 0 when the average is 0.
func ComputeDailyStats(prices []float64) DailyStats {
	stats := DailyStats{Count: len(prices)}
	if len(prices) == 0 {
		return stats
	}

	stats.Min = prices[0]
	stats.Max = prices[0]
	var sum float64
	for _, p := range prices {
		sum += p
		if p < stats.Min {
			stats.Min = p
		}
		if p > stats.Max {
			stats.Max = p
		}
	}
	stats.Avg = sum / float64(len(prices))
	stats.Median = median(prices)
	stats.StdDev = sampleStdDev(prices, stats.Avg)
	if stats.Avg != 0 {
		stats.Volatility = stats.StdDev / stats.Avg * 100
	}
	return stats
}

func median(prices []float64) float64 {
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func sampleStdDev(prices []float64, avg float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	var sumSquares float64
	for _, p := range prices {
		diff := p - avg
		sumSquares += diff * diff
	}
	variance := sumSquares / float64(len(prices)-1)
	return math.Sqrt(variance)
}
