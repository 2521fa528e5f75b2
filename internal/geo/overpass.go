package geo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// DefaultOverpassURL is the public Overpass interpreter endpoint.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// OverpassClient searches OpenStreetMap nodes with the Overpass API.
type OverpassClient struct {
	cfg Opts
}

// NewOverpassClient creates a nearby searcher. Without options it uses the public endpoint.
func NewOverpassClient(opts ...Option) *OverpassClient {
	return &OverpassClient{cfg: applyOpts(DefaultOverpassURL, opts)}
}

// BuildQuery renders the Overpass QL query for nodes matching filter within radius of center.
func BuildQuery(center Coordinates, radiusMeters int, filter Filter) string {
	return fmt.Sprintf("[out:json];node[%q=%q](around:%d,%.6f,%.6f);out;",
		filter.Key, filter.Value, radiusMeters, center.Lat, center.Lon)
}

// Nearby returns matching places in the order Overpass reports them.
func (c *OverpassClient) Nearby(ctx context.Context, center Coordinates, radiusMeters int, filter Filter) ([]RawPlace, error) {
	query := BuildQuery(center, radiusMeters, filter)
	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	slog.Debug("Overpass Nearby request", "center", center.String(), "radius", radiusMeters, "filter", filter.Key+"="+filter.Value)
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w: %w", models.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read overpass response: %w: %w", models.ErrServiceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass returned status %d: %w", resp.StatusCode, models.ErrServiceUnavailable)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("overpass returned invalid JSON: %w", models.ErrServiceUnavailable)
	}

	elements := gjson.GetBytes(body, "elements").Array()
	places := make([]RawPlace, 0, len(elements))
	for _, el := range elements {
		p := RawPlace{
			ID:   el.Get("id").Int(),
			Lat:  el.Get("lat").Float(),
			Lon:  el.Get("lon").Float(),
			Tags: make(map[string]string),
		}
		el.Get("tags").ForEach(func(k, v gjson.Result) bool {
			p.Tags[k.String()] = v.String()
			return true
		})
		places = append(places, p)
	}

	slog.Debug("Overpass Nearby results", "count", len(places))
	return places, nil
}
