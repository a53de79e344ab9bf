package delivery_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/service/delivery"
)

func TestHaversine(t *testing.T) {
	t.Parallel()

	require.Zero(t, delivery.Haversine(yaba.Point, yaba.Point))

	london := domain.Point{Lat: 51.5074, Lon: -0.1278}
	paris := domain.Point{Lat: 48.8566, Lon: 2.3522}
	require.InDelta(t, 343.5, delivery.Haversine(london, paris), 1)
	require.InDelta(t, delivery.Haversine(london, paris), delivery.Haversine(paris, london), 1e-9)
}

func TestQuoteFactory(t *testing.T) {
	t.Parallel()

	f := delivery.NewQuoteFactory(delivery.Pricing{BaseFare: 500, PerKm: 150, AvgSpeedKmh: 30})

	q := f.Quote(domain.Point{}, domain.Point{})
	require.Equal(t, domain.Quote{Price: 500}, q)

	q = f.Quote(domain.Point{Lat: 0, Lon: 0}, domain.Point{Lat: 0, Lon: 0.1})
	require.Equal(t, 11.12, q.DistanceKm)
	require.Equal(t, 23, q.DurationMin)
	require.Equal(t, 2167.92, q.Price)
}

func TestQuoteFactory_DefaultSpeed(t *testing.T) {
	t.Parallel()

	f := delivery.NewQuoteFactory(delivery.Pricing{})
	q := f.Quote(domain.Point{}, domain.Point{Lat: 0, Lon: 0.1})
	require.Equal(t, 27, q.DurationMin)
}
