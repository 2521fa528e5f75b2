package geo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// DefaultNominatimURL is the public Nominatim search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimClient geocodes addresses with the Nominatim search API.
type NominatimClient struct {
	cfg Opts
}

// NewNominatimClient creates a geocoder. Without options it uses the public endpoint.
func NewNominatimClient(opts ...Option) *NominatimClient {
	return &NominatimClient{cfg: applyOpts(DefaultNominatimURL, opts)}
}

// Geocode returns the coordinates of the first match for address.
func (c *NominatimClient) Geocode(ctx context.Context, address string) (Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Coordinates{}, fmt.Errorf("empty address: %w", models.ErrAddressNotFound)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	slog.Debug("Nominatim Geocode request", "address", address)
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode request failed: %w: %w", models.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to read geocode response: %w: %w", models.ErrServiceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("geocode returned status %d: %w", resp.StatusCode, models.ErrServiceUnavailable)
	}
	if !gjson.ValidBytes(body) {
		return Coordinates{}, fmt.Errorf("geocode returned invalid JSON: %w", models.ErrServiceUnavailable)
	}

	first := gjson.GetBytes(body, "0")
	if !first.Exists() {
		slog.Debug("Nominatim Geocode no results", "address", address)
		return Coordinates{}, fmt.Errorf("no results for %q: %w", address, models.ErrAddressNotFound)
	}

	lat, errLat := parseCoord(first.Get("lat"))
	lon, errLon := parseCoord(first.Get("lon"))
	if errLat != nil || errLon != nil {
		return Coordinates{}, fmt.Errorf("geocode result without coordinates: %w", models.ErrServiceUnavailable)
	}

	coords := Coordinates{Lat: lat, Lon: lon}
	slog.Debug("Nominatim Geocode resolved", "address", address, "coords", coords.String())
	return coords, nil
}

// Nominatim encodes coordinates as strings; accept numbers too.
func parseCoord(r gjson.Result) (float64, error) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), nil
	case gjson.String:
		return strconv.ParseFloat(r.String(), 64)
	default:
		return 0, fmt.Errorf("missing coordinate")
	}
}
