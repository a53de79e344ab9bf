package delivery

import (
	"math"

	"service-delivery-tracking/internal/domain"
)

const earthRadiusKm = 6371.0

// Pricing configures the default quote factory.
type Pricing struct {
	BaseFare    float64
	PerKm       float64
	AvgSpeedKmh float64
}

type distanceQuoteFactory struct {
	p Pricing
}

// NewQuoteFactory creates a QuoteFactory pricing straight-line distance.
func NewQuoteFactory(p Pricing) QuoteFactory {
	if p.AvgSpeedKmh <= 0 {
		p.AvgSpeedKmh = 25
	}
	return distanceQuoteFactory{p: p}
}

// Quote returns distance, travel time at the average speed and price.
func (f distanceQuoteFactory) Quote(from, to domain.Point) domain.Quote {
	km := Haversine(from, to)
	return domain.Quote{
		DistanceKm:  round2(km),
		DurationMin: int(math.Ceil(km / f.p.AvgSpeedKmh * 60)),
		Price:       round2(f.p.BaseFare + f.p.PerKm*km),
	}
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b domain.Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
