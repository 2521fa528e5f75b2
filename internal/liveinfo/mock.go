package liveinfo

import (
	"context"
	"sync"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// MockLookup is a Lookup returning a canned result, for tests.
type MockLookup struct {
	mu    sync.Mutex
	Info  models.LiveInfo
	Err   error
	Calls int
}

// Lookup returns the configured result.
func (m *MockLookup) Lookup(ctx context.Context, name, address string) (models.LiveInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Info, m.Err
}

// MockScraper is a Scraper returning a canned result, for tests.
type MockScraper struct {
	mu    sync.Mutex
	Info  models.LiveInfo
	Calls int
}

// Scrape returns the configured result.
func (m *MockScraper) Scrape(ctx context.Context, name, address string) models.LiveInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Info
}
