package geo

import (
	"context"
	"sync"
)

// MockGeocoder is a Geocoder returning canned results, for tests.
type MockGeocoder struct {
	mu     sync.Mutex
	Coords Coordinates
	Err    error
	Calls  []string
}

// Geocode records the call and returns the configured result.
func (m *MockGeocoder) Geocode(ctx context.Context, address string) (Coordinates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, address)
	return m.Coords, m.Err
}

// MockNearbySearcher is a NearbySearcher returning canned results, for tests.
type MockNearbySearcher struct {
	mu      sync.Mutex
	Places  []RawPlace
	Err     error
	Radius  int
	Filter  Filter
	Centers []Coordinates
}

// Nearby records the call and returns the configured places.
func (m *MockNearbySearcher) Nearby(ctx context.Context, center Coordinates, radiusMeters int, filter Filter) ([]RawPlace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Centers = append(m.Centers, center)
	m.Radius = radiusMeters
	m.Filter = filter
	return m.Places, m.Err
}
