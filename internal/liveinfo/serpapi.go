package liveinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// DefaultSerpAPIURL is the SerpAPI search endpoint.
const DefaultSerpAPIURL = "https://serpapi.com/search.json"

// ErrNoResult indicates the search API had nothing for the query.
var ErrNoResult = errors.New("no business result")

// SerpAPIClient looks up a business with SerpAPI's Google Maps engine.
type SerpAPIClient struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

// SerpAPIOption configures a SerpAPIClient.
type SerpAPIOption func(*SerpAPIClient)

// WithSerpAPIBaseURL overrides the endpoint.
func WithSerpAPIBaseURL(u string) SerpAPIOption {
	return func(c *SerpAPIClient) { c.baseURL = u }
}

// WithSerpAPIHTTPClient sets the HTTP client.
func WithSerpAPIHTTPClient(h *http.Client) SerpAPIOption {
	return func(c *SerpAPIClient) { c.httpClient = h }
}

// NewSerpAPIClient creates a client for apiKey.
func NewSerpAPIClient(apiKey string, opts ...SerpAPIOption) *SerpAPIClient {
	c := &SerpAPIClient{
		apiKey:     apiKey,
		baseURL:    DefaultSerpAPIURL,
		language:   "pt-br",
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup queries "<name> <address>" and reads the first local result, or the
// single place result.
func (c *SerpAPIClient) Lookup(ctx context.Context, name, address string) (models.LiveInfo, error) {
	q := url.Values{}
	q.Set("engine", "google_maps")
	q.Set("type", "search")
	q.Set("q", strings.TrimSpace(name+" "+address))
	q.Set("hl", c.language)
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return models.LiveInfo{}, fmt.Errorf("failed to build serpapi request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.LiveInfo{}, fmt.Errorf("serpapi request failed: %w: %w", models.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.LiveInfo{}, fmt.Errorf("failed to read serpapi response: %w: %w", models.ErrServiceUnavailable, err)
	}
	if !gjson.ValidBytes(body) {
		return models.LiveInfo{}, fmt.Errorf("serpapi returned invalid JSON (status %d): %w", resp.StatusCode, models.ErrServiceUnavailable)
	}
	return ParseSerpAPIResponse(body)
}

// ParseSerpAPIResponse extracts phone and status from a Google Maps engine response.
func ParseSerpAPIResponse(body []byte) (models.LiveInfo, error) {
	root := gjson.ParseBytes(body)
	if msg := root.Get("error"); msg.Exists() {
		slog.Debug("SerpAPI error response", "error", msg.String())
		return models.LiveInfo{}, fmt.Errorf("serpapi: %s: %w", msg.String(), models.ErrServiceUnavailable)
	}

	result := root.Get("local_results.0")
	if !result.Exists() {
		result = root.Get("place_results")
	}
	if !result.Exists() {
		return models.LiveInfo{Status: models.Unavailable()}, ErrNoResult
	}

	return models.LiveInfo{
		Phone:  strings.TrimSpace(result.Get("phone").String()),
		Status: parseStatus(result),
	}, nil
}

func parseStatus(r gjson.Result) models.Status {
	if s := strings.TrimSpace(r.Get("open_state").String()); s != "" {
		return models.PlainText(s)
	}

	openNow := r.Get("open_now")
	if !openNow.Exists() {
		openNow = r.Get("opening_hours.open_now")
	}
	if openNow.Exists() && (openNow.Type == gjson.True || openNow.Type == gjson.False) {
		if openNow.Bool() {
			return models.PlainText(StatusOpenNow)
		}
		return models.PlainText(StatusClosedNow)
	}

	if hours := r.Get("operating_hours"); hours.IsObject() {
		var days models.StructuredHours
		hours.ForEach(func(k, v gjson.Result) bool {
			days = append(days, models.DayHours{Day: k.String(), Hours: v.String()})
			return true
		})
		if len(days) > 0 {
			return days
		}
	}

	hours := r.Get("hours")
	switch {
	case hours.IsArray():
		var days models.StructuredHours
		hours.ForEach(func(_, v gjson.Result) bool {
			if v.IsObject() {
				v.ForEach(func(k, h gjson.Result) bool {
					days = append(days, models.DayHours{Day: k.String(), Hours: h.String()})
					return true
				})
			} else if s := strings.TrimSpace(v.String()); s != "" {
				days = append(days, models.DayHours{Hours: s})
			}
			return true
		})
		if len(days) > 0 {
			return days
		}
	case hours.Type == gjson.String && strings.TrimSpace(hours.String()) != "":
		return models.PlainText(strings.TrimSpace(hours.String()))
	}

	return models.Unavailable()
}
