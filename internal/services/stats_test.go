package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDailyStats_KnownValues(t *testing.T) {
	stats := ComputeDailyStats([]float64{1000, 2000, 3000})

	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 2000, stats.Avg, 1e-9)
	assert.InDelta(t, 1000, stats.Min, 1e-9)
	assert.InDelta(t, 3000, stats.Max, 1e-9)
	assert.InDelta(t, 2000, stats.Median, 1e-9)
	// Sample standard deviation: sqrt((1000^2 + 0 + 1000^2) / 2).
	assert.InDelta(t, 1000, stats.StdDev, 1e-9)
	assert.InDelta(t, 50, stats.Volatility, 1e-9)
}

func TestComputeDailyStats_SinglePrice(t *testing.T) {
	stats := ComputeDailyStats([]float64{65000})

	assert.Equal(t, 1, stats.Count)
	assert.InDelta(t, 65000, stats.Avg, 1e-9)
	assert.InDelta(t, 65000, stats.Median, 1e-9)
	assert.Zero(t, stats.StdDev)
	assert.Zero(t, stats.Volatility)
}

func TestComputeDailyStats_EvenCountMedian(t *testing.T) {
	stats := ComputeDailyStats([]float64{100, 400, 200, 300})

	assert.InDelta(t, 250, stats.Median, 1e-9)
}

func TestComputeDailyStats_ZeroAverageHasZeroVolatility(t *testing.T) {
	stats := ComputeDailyStats([]float64{0, 0})

	assert.Zero(t, stats.Avg)
	assert.Zero(t, stats.Volatility)
}

func TestComputeDailyStats_Empty(t *testing.T) {
	stats := ComputeDailyStats(nil)

	assert.Zero(t, stats.Count)
	assert.Zero(t, stats.Avg)
	assert.Zero(t, stats.Volatility)
}

func TestComputeDailyStats_DoesNotReorderInput(t *testing.T) {
	prices := []float64{3000, 1000, 2000}
	ComputeDailyStats(prices)

	assert.Equal(t, []float64{3000, 1000, 2000}, prices)
}
