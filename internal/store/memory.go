package store

import (
	"context"
	"sync"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

// Memory implements listing.Store in memory, keyed by source URL.
// It backs tests and local dry runs.
type Memory struct {
	mu       sync.RWMutex
	listings map[string]listing.Listing
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{listings: make(map[string]listing.Listing)}
}

// GetByURL returns a copy of the stored listing for a URL.
func (m *Memory) GetByURL(_ context.Context, url string) (*listing.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[url]
	if !ok {
		return nil, listing.ErrNotFound
	}
	cp := l
	return &cp, nil
}

// Insert stores a new listing, refusing duplicates.
func (m *Memory) Insert(_ context.Context, l *listing.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[l.SourceURL]; ok {
		return listing.ErrConflict
	}
	m.listings[l.SourceURL] = *l
	return nil
}

// Update overwrites an existing listing.
func (m *Memory) Update(_ context.Context, l *listing.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[l.SourceURL]; !ok {
		return listing.ErrNotFound
	}
	m.listings[l.SourceURL] = *l
	return nil
}

// ActiveURLs returns the URLs of active listings for a source.
func (m *Memory) ActiveURLs(_ context.Context, source string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var urls []string
	for url, l := range m.listings {
		if l.Source == source && l.Active {
			urls = append(urls, url)
		}
	}
	return urls, nil
}

// Len reports how many listings are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listings)
}
