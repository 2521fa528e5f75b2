// Package pharmacy turns a user address into a short list of nearby pharmacy candidates.
package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/geo"
	"github.com/paulosouza-ec/Avotech/internal/models"
)

// DefaultRadiusMeters is the search radius around the geocoded address.
const DefaultRadiusMeters = 2000

// Default per-call timeouts.
const (
	DefaultGeocodeTimeout = 5 * time.Second
	DefaultNearbyTimeout  = 10 * time.Second
)

// addressTags lists the OSM tags joined into the displayed address, in order.
var addressTags = []string{
	"addr:full",
	"addr:street",
	"addr:housenumber",
	"addr:suburb",
	"addr:city",
	"addr:postcode",
}

// Opts configures a Resolver.
type Opts struct {
	RadiusMeters   int
	MaxResults     int
	GeocodeTimeout time.Duration
	NearbyTimeout  time.Duration
}

// Option sets a Resolver option.
type Option func(*Opts)

// WithRadius sets the search radius in meters.
func WithRadius(m int) Option {
	return func(o *Opts) { o.RadiusMeters = m }
}

// WithMaxResults caps the number of returned candidates.
func WithMaxResults(n int) Option {
	return func(o *Opts) { o.MaxResults = n }
}

// WithTimeouts bounds the geocode and nearby calls.
func WithTimeouts(geocode, nearby time.Duration) Option {
	return func(o *Opts) {
		o.GeocodeTimeout = geocode
		o.NearbyTimeout = nearby
	}
}

// Resolver resolves an address to pharmacy candidates.
type Resolver struct {
	geocoder geo.Geocoder
	nearby   geo.NearbySearcher
	opts     Opts
}

// NewResolver creates a Resolver over the given adapters.
func NewResolver(g geo.Geocoder, n geo.NearbySearcher, opts ...Option) *Resolver {
	cfg := Opts{
		RadiusMeters:   DefaultRadiusMeters,
		MaxResults:     models.MaxCandidates,
		GeocodeTimeout: DefaultGeocodeTimeout,
		NearbyTimeout:  DefaultNearbyTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxResults <= 0 || cfg.MaxResults > models.MaxCandidates {
		cfg.MaxResults = models.MaxCandidates
	}
	return &Resolver{geocoder: g, nearby: n, opts: cfg}
}

// Resolve geocodes address and returns up to MaxResults valid pharmacies in the
// order the search service returned them. drugName is only logged; stock is
// never checked here.
//
// Errors wrap models.ErrAddressNotFound or models.ErrServiceUnavailable.
func (r *Resolver) Resolve(ctx context.Context, address, drugName string) ([]models.Pharmacy, error) {
	slog.Debug("Resolver Resolve start", "address", address, "drug", drugName)

	gctx, cancel := context.WithTimeout(ctx, r.opts.GeocodeTimeout)
	coords, err := r.geocoder.Geocode(gctx, address)
	cancel()
	if err != nil {
		return nil, classify("geocode", err)
	}

	nctx, cancel := context.WithTimeout(ctx, r.opts.NearbyTimeout)
	places, err := r.nearby.Nearby(nctx, coords, r.opts.RadiusMeters, geo.PharmacyFilter)
	cancel()
	if err != nil {
		return nil, classify("nearby search", err)
	}

	result := make([]models.Pharmacy, 0, r.opts.MaxResults)
	for _, place := range places {
		p := FromPlace(place)
		if !p.IsValid() {
			continue
		}
		result = append(result, p)
		if len(result) == r.opts.MaxResults {
			break
		}
	}

	slog.Info("Resolver Resolve done", "address", address, "raw", len(places), "candidates", len(result))
	return result, nil
}

// FromPlace maps a raw OSM record to a Pharmacy, filling placeholders for a
// missing name or address and carrying a phone tag when present.
func FromPlace(place geo.RawPlace) models.Pharmacy {
	name := strings.TrimSpace(place.Tag("name"))
	if name == "" {
		name = models.UnnamedPharmacy
	}
	return models.Pharmacy{
		Name:    name,
		Address: SynthesizeAddress(place.Tags),
		Phone:   phoneHint(place.Tags),
	}
}

// SynthesizeAddress joins the present address tags with ", ".
func SynthesizeAddress(tags map[string]string) string {
	parts := make([]string, 0, len(addressTags))
	for _, key := range addressTags {
		if v := strings.TrimSpace(tags[key]); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return models.UnknownAddress
	}
	return strings.Join(parts, ", ")
}

func phoneHint(tags map[string]string) string {
	if v := strings.TrimSpace(tags["contact:phone"]); v != "" {
		return v
	}
	return strings.TrimSpace(tags["phone"])
}

// classify maps adapter errors onto the resolver's two failure kinds.
func classify(step string, err error) error {
	if errors.Is(err, models.ErrAddressNotFound) {
		return fmt.Errorf("%s: %w", step, err)
	}
	if errors.Is(err, models.ErrServiceUnavailable) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %w", step, models.ErrServiceUnavailable, err)
}
