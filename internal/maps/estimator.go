// README: Travel estimation for driver-to-order distance and delivery ETAs.
package maps

import (
	"context"
	"fmt"
	"math"
	"time"

	"googlemaps.github.io/maps"

	"hmarket/internal/types"
)

type Estimate struct {
	DistanceKm float64
	Duration   time.Duration
}

// Estimator computes a travel estimate between two points. Listing and ETA
// callers treat it as best-effort: an error falls back to haversine or to no
// estimate at all.
type Estimator interface {
	Estimate(ctx context.Context, origin, dest types.Point) (Estimate, error)
}

// GoogleEstimator asks the Directions API for driving distance and duration.
type GoogleEstimator struct {
	client *maps.Client
}

func NewGoogleEstimator(apiKey string) (*GoogleEstimator, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleEstimator{client: client}, nil
}

func (g *GoogleEstimator) Estimate(ctx context.Context, origin, dest types.Point) (Estimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:        maps.TravelModeDriving,
		Language:    "fr",
		Region:      "FR",
	}
	routes, _, err := g.client.Directions(ctx, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Estimate{}, fmt.Errorf("no route found")
	}
	leg := routes[0].Legs[0]
	return Estimate{
		DistanceKm: float64(leg.Distance.Meters) / 1000.0,
		Duration:   leg.Duration,
	}, nil
}

// averageSpeedKmh approximates urban delivery traffic for the fallback ETA.
const averageSpeedKmh = 25.0

// HaversineEstimator is the offline fallback: great-circle distance and an
// ETA derived from an average urban speed.
type HaversineEstimator struct{}

func (HaversineEstimator) Estimate(_ context.Context, origin, dest types.Point) (Estimate, error) {
	km := HaversineKm(origin, dest)
	return Estimate{
		DistanceKm: km,
		Duration:   time.Duration(km / averageSpeedKmh * float64(time.Hour)),
	}, nil
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
