// Package geo provides the geocoding and nearby point-of-interest search adapters
// backed by OpenStreetMap services (Nominatim and Overpass).
package geo

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultUserAgent identifies the bot to OpenStreetMap services, which reject
// anonymous clients.
const DefaultUserAgent = "Avotech/1.0 (pharmacy assistant)"

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Filter selects points of interest by a single tag equality, e.g. amenity=pharmacy.
type Filter struct {
	Key   string
	Value string
}

// PharmacyFilter matches pharmacies.
var PharmacyFilter = Filter{Key: "amenity", Value: "pharmacy"}

// RawPlace is an untyped point of interest as returned by the nearby search.
type RawPlace struct {
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// Tag returns the value of a tag, or "" when absent.
func (p RawPlace) Tag(key string) string {
	if p.Tags == nil {
		return ""
	}
	return p.Tags[key]
}

// Geocoder resolves a free-text address to coordinates.
// It returns an error wrapping models.ErrAddressNotFound when nothing matches.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// NearbySearcher lists points of interest around a coordinate.
type NearbySearcher interface {
	Nearby(ctx context.Context, center Coordinates, radiusMeters int, filter Filter) ([]RawPlace, error)
}

// Opts holds configuration shared by the OSM clients.
type Opts struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// Option configures an OSM client.
type Option func(*Opts)

// WithBaseURL overrides the service endpoint.
func WithBaseURL(u string) Option {
	return func(o *Opts) {
		o.BaseURL = u
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *Opts) {
		o.UserAgent = ua
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

func applyOpts(defaultURL string, opts []Option) Opts {
	cfg := Opts{
		BaseURL:    defaultURL,
		UserAgent:  DefaultUserAgent,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return cfg
}
