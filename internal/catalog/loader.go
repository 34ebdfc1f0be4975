package catalog

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader fetches the catalog once and shares it. Concurrent first calls
// collapse into a single Source.Fetch.
type Loader struct {
	source Source
	sfg    singleflight.Group

	mu      sync.RWMutex
	current *Catalog
}

// NewLoader creates a loader over the given source.
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// Catalog returns the loaded catalog, fetching it on first use.
func (l *Loader) Catalog(ctx context.Context) (*Catalog, error) {
	l.mu.RLock()
	c := l.current
	l.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	return l.Reload(ctx)
}

// Reload fetches the catalog again. Sessions already holding a method keep it.
func (l *Loader) Reload(ctx context.Context) (*Catalog, error) {
	v, err, _ := l.sfg.Do("catalog", func() (interface{}, error) {
		return l.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

func (l *Loader) fetch(ctx context.Context) (*Catalog, error) {
	methods, err := l.source.Fetch(ctx)
	if err != nil {
		slog.Error("catalog_fetch_failed", "error", err)
		return nil, err
	}
	c, err := New(methods)
	if err != nil {
		slog.Error("catalog_invalid", "error", err)
		return nil, err
	}

	l.mu.Lock()
	l.current = c
	l.mu.Unlock()

	slog.Info("catalog_loaded", "methods", c.Len())
	return c, nil
}
