// Package liveinfo looks up the current phone number and opening status of a
// pharmacy, trying a structured search API first and a headless browser second.
package liveinfo

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/metrics"
	"github.com/paulosouza-ec/Avotech/internal/models"
)

// Default per-source timeouts.
const (
	DefaultPrimaryTimeout  = 10 * time.Second
	DefaultFallbackTimeout = 45 * time.Second
)

// Status strings rendered from boolean open flags.
const (
	StatusOpenNow   = "Aberta agora"
	StatusClosedNow = "Fechada no momento"
)

// Lookup is the primary, structured business-info source. It may fail.
type Lookup interface {
	Lookup(ctx context.Context, name, address string) (models.LiveInfo, error)
}

// Scraper is the secondary source. It never fails; on any problem it returns
// an empty phone and the unavailable status.
type Scraper interface {
	Scrape(ctx context.Context, name, address string) models.LiveInfo
}

// Opts configures an Enricher.
type Opts struct {
	PrimaryTimeout  time.Duration
	FallbackTimeout time.Duration
	Metrics         *metrics.Metrics
}

// Option sets an Enricher option.
type Option func(*Opts)

// WithTimeouts bounds the primary and fallback calls.
func WithTimeouts(primary, fallback time.Duration) Option {
	return func(o *Opts) {
		o.PrimaryTimeout = primary
		o.FallbackTimeout = fallback
	}
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Opts) {
		o.Metrics = m
	}
}

// Enricher merges the primary and fallback sources into one LiveInfo.
// Either source may be nil.
type Enricher struct {
	primary  Lookup
	fallback Scraper
	opts     Opts
}

// NewEnricher creates an Enricher.
func NewEnricher(primary Lookup, fallback Scraper, opts ...Option) *Enricher {
	cfg := Opts{
		PrimaryTimeout:  DefaultPrimaryTimeout,
		FallbackTimeout: DefaultFallbackTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Enricher{primary: primary, fallback: fallback, opts: cfg}
}

// Enrich returns the best-effort live info for a pharmacy. It never fails.
//
// The fallback runs only when the primary yields no phone. The phone then comes
// from the fallback, and the status stays the primary's unless the primary's
// was unavailable.
func (e *Enricher) Enrich(ctx context.Context, name, address string) models.LiveInfo {
	info := e.lookupPrimary(ctx, name, address)
	if info.HasPhone() || e.fallback == nil {
		return info
	}

	slog.Debug("Enricher Enrich falling back to browser", "name", name)
	fb := e.scrape(ctx, name, address)
	merged := models.LiveInfo{Phone: fb.Phone, Status: info.Status}
	if models.IsUnavailable(merged.Status) {
		merged.Status = fb.Status
	}
	if merged.Status == nil {
		merged.Status = models.Unavailable()
	}
	return merged
}

// EnrichPharmacy enriches p, keeping a phone already known from the search
// tags. Only the status is looked up in that case, and the browser is skipped.
func (e *Enricher) EnrichPharmacy(ctx context.Context, p models.Pharmacy) models.LiveInfo {
	hint := strings.TrimSpace(p.Phone)
	if hint == "" {
		return e.Enrich(ctx, p.Name, p.Address)
	}
	info := e.lookupPrimary(ctx, p.Name, p.Address)
	slog.Debug("Enricher EnrichPharmacy using tagged phone", "name", p.Name, "phone", hint)
	return models.LiveInfo{Phone: hint, Status: info.Status}
}

func (e *Enricher) lookupPrimary(ctx context.Context, name, address string) models.LiveInfo {
	if e.primary == nil {
		return models.LiveInfo{Status: models.Unavailable()}
	}
	pctx, cancel := context.WithTimeout(ctx, e.opts.PrimaryTimeout)
	defer cancel()

	start := time.Now()
	info, err := e.primary.Lookup(pctx, name, address)
	e.opts.Metrics.ObserveCall("live_info_primary", start)
	if err != nil {
		slog.Warn("Enricher primary lookup failed", "name", name, "error", err)
		e.opts.Metrics.Enrichment("primary", "error")
		return models.LiveInfo{Status: models.Unavailable()}
	}
	if info.Status == nil {
		info.Status = models.Unavailable()
	}
	e.opts.Metrics.Enrichment("primary", outcome(info))
	return info
}

func (e *Enricher) scrape(ctx context.Context, name, address string) models.LiveInfo {
	fctx, cancel := context.WithTimeout(ctx, e.opts.FallbackTimeout)
	defer cancel()

	start := time.Now()
	info := e.fallback.Scrape(fctx, name, address)
	e.opts.Metrics.ObserveCall("live_info_fallback", start)
	e.opts.Metrics.Enrichment("fallback", outcome(info))
	return info
}

func outcome(info models.LiveInfo) string {
	if info.HasPhone() {
		return "phone"
	}
	return "no_phone"
}
