package fare

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var testTariff = Tariff{
	BaseFare:         decimal.RequireFromString("2.50"),
	PerKilometerRate: decimal.RequireFromString("1.20"),
	PerMinuteRate:    decimal.RequireFromString("0.30"),
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance(41.3, 69.2, 41.3, 69.2), 1e-9)
	// Tashkent to Samarkand, roughly 266 km as the crow flies
	assert.InDelta(t, 266, Distance(41.2995, 69.2401, 39.6542, 66.9597), 5)
}

func TestEstimateMinutes(t *testing.T) {
	assert.Equal(t, 0, EstimateMinutes(0))
	assert.Equal(t, 20, EstimateMinutes(10))
	assert.Equal(t, 1, EstimateMinutes(0.1))
}

func TestCompute(t *testing.T) {
	b := Compute(testTariff, 10, 20)
	assert.True(t, decimal.RequireFromString("12.00").Equal(b.DistanceFare), b.DistanceFare.String())
	assert.True(t, decimal.RequireFromString("6.00").Equal(b.TimeFare), b.TimeFare.String())
	assert.True(t, decimal.RequireFromString("20.50").Equal(b.Total), b.Total.String())
}

func TestComputeRoundsToCents(t *testing.T) {
	b := Compute(testTariff, 1.234, 0)
	assert.Equal(t, "1.48", b.DistanceFare.StringFixed(2))
	assert.Equal(t, 1.23, b.DistanceKm)
}

func TestComputeClampsNegativeInput(t *testing.T) {
	b := Compute(testTariff, -3, -1)
	assert.True(t, b.Total.Equal(testTariff.BaseFare))
}

func TestWithTip(t *testing.T) {
	b := Compute(testTariff, 10, 20).WithTip(decimal.RequireFromString("3"))
	assert.Equal(t, "23.50", b.Total.StringFixed(2))

	b = b.WithTip(decimal.RequireFromString("1"))
	assert.Equal(t, "21.50", b.Total.StringFixed(2))
}

func TestActualMinutes(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, ActualMinutes(start, start))
	assert.Equal(t, 0, ActualMinutes(start, start.Add(-time.Minute)))
	assert.Equal(t, 1, ActualMinutes(start, start.Add(10*time.Second)))
	assert.Equal(t, 15, ActualMinutes(start, start.Add(15*time.Minute)))
}

func TestEstimate(t *testing.T) {
	b := Estimate(testTariff, 41.2995, 69.2401, 41.2995, 69.2401)
	assert.Equal(t, "2.50", b.Total.StringFixed(2))
}

func TestSettleKeepsBookedDistanceFare(t *testing.T) {
	tariff := Tariff{
		BaseFare:         decimal.Zero,
		PerKilometerRate: decimal.RequireFromString("7.77"),
		PerMinuteRate:    decimal.RequireFromString("0.35"),
	}
	booked := Compute(tariff, 4.1549, 9)
	// repricing the rounded km would give 32.25
	assert.Equal(t, "32.28", booked.DistanceFare.StringFixed(2))
	assert.Equal(t, 4.15, booked.DistanceKm)
	booked.Tip = decimal.RequireFromString("1.10")

	settled := Settle(booked, tariff, 13)
	assert.Equal(t, "32.28", settled.DistanceFare.StringFixed(2))
	assert.Equal(t, "4.55", settled.TimeFare.StringFixed(2))
	assert.Equal(t, 13, settled.Minutes)
	sum := settled.BaseFare.Add(settled.DistanceFare).Add(settled.TimeFare).Add(settled.Tip)
	assert.True(t, sum.Equal(settled.Total), "%s != %s", sum, settled.Total)
	assert.Equal(t, "37.93", settled.Total.StringFixed(2))
}

func TestSettleClampsNegativeMinutes(t *testing.T) {
	settled := Settle(Compute(testTariff, 10, 20), testTariff, -5)
	assert.True(t, settled.TimeFare.IsZero())
	assert.Equal(t, "14.50", settled.Total.StringFixed(2))
}
