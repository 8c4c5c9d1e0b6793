// Package fare prices rides from a vehicle tariff and trip geometry.
package fare

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EarthRadiusKM = 6371.0
	// AverageSpeedKMH is the assumed urban speed used to estimate trip time.
	AverageSpeedKMH = 30.0
)

// Tariff is the pricing of a single vehicle.
type Tariff struct {
	BaseFare         decimal.Decimal
	PerKilometerRate decimal.Decimal
	PerMinuteRate    decimal.Decimal
}

type Breakdown struct {
	DistanceKm   float64         `json:"distance_km"`
	Minutes      int             `json:"minutes"`
	BaseFare     decimal.Decimal `json:"base_fare"`
	DistanceFare decimal.Decimal `json:"distance_fare"`
	TimeFare     decimal.Decimal `json:"time_fare"`
	Tip          decimal.Decimal `json:"tip"`
	Total        decimal.Decimal `json:"total"`
}

// Distance returns the great-circle distance in kilometres.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKM * c
}

func EstimateMinutes(distanceKm float64) int {
	return int(math.Ceil(distanceKm / AverageSpeedKMH * 60))
}

// Estimate prices a trip before it starts, from straight-line distance
// and an estimated duration.
func Estimate(t Tariff, pickupLat, pickupLng, dropoffLat, dropoffLng float64) Breakdown {
	km := Distance(pickupLat, pickupLng, dropoffLat, dropoffLng)
	return Compute(t, km, EstimateMinutes(km))
}

// Compute prices a trip of km kilometres lasting minutes, rounded to cents.
func Compute(t Tariff, km float64, minutes int) Breakdown {
	if km < 0 {
		km = 0
	}
	if minutes < 0 {
		minutes = 0
	}
	b := Breakdown{
		DistanceKm:   math.Round(km*100) / 100,
		Minutes:      minutes,
		BaseFare:     t.BaseFare.Round(2),
		DistanceFare: t.PerKilometerRate.Mul(decimal.NewFromFloat(km)).Round(2),
		TimeFare:     t.PerMinuteRate.Mul(decimal.NewFromInt(int64(minutes))).Round(2),
		Tip:          decimal.Zero,
	}
	b.Total = b.BaseFare.Add(b.DistanceFare).Add(b.TimeFare)
	return b
}

// WithTip returns b with tip added to the total.
func (b Breakdown) WithTip(tip decimal.Decimal) Breakdown {
	b.Total = b.Total.Sub(b.Tip)
	b.Tip = tip.Round(2)
	b.Total = b.Total.Add(b.Tip)
	return b
}

// Settle reprices a booked trip for the minutes it actually lasted. The base
// and distance fares agreed at booking are kept as stored; only the time fare
// is recomputed, so Total always equals the sum of the stored parts.
func Settle(booked Breakdown, t Tariff, minutes int) Breakdown {
	if minutes < 0 {
		minutes = 0
	}
	booked.Minutes = minutes
	booked.TimeFare = t.PerMinuteRate.Mul(decimal.NewFromInt(int64(minutes))).Round(2)
	booked.Total = booked.BaseFare.Add(booked.DistanceFare).Add(booked.TimeFare).Add(booked.Tip)
	return booked
}

// ActualMinutes is the billed duration between start and end, rounded up
// to whole minutes.
func ActualMinutes(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(math.Ceil(end.Sub(start).Minutes()))
}
