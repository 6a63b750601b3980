// Package maps estimates ride distances with the Google Maps Directions API.
package maps

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"googlemaps.github.io/maps"

	"github.com/iho/rideledger/internal/domain"
)

// RouteEstimator implements usecase.RouteEstimator.
type RouteEstimator struct {
	client *maps.Client
}

// NewRouteEstimator creates an estimator for apiKey. Extra client options
// are passed through, e.g. maps.WithBaseURL in tests.
func NewRouteEstimator(apiKey string, opts ...maps.ClientOption) (*RouteEstimator, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteEstimator{client: client}, nil
}

// EstimateDistance returns the driving distance of the first route, in km.
func (e *RouteEstimator) EstimateDistance(ctx context.Context, origin, destination domain.Place) (decimal.Decimal, error) {
	routes, _, err := e.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      location(origin),
		Destination: location(destination),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: maps api: %w", domain.ErrUnavailable, err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no route found", domain.ErrInvalidInput)
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}

	return decimal.NewFromInt(int64(meters)).Div(decimal.NewFromInt(1000)), nil
}

// location prefers coordinates, then the address, then the name.
func location(p domain.Place) string {
	if p.Lat != 0 || p.Lng != 0 {
		return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
	}
	if p.Address != "" {
		return p.Address
	}
	return p.Name
}
