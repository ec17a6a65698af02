// Package cache holds the provider readings shared by one update cycle.
package cache

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"sentiment_bot/internal/model"
	"sentiment_bot/internal/provider"
)

// Cache stores the latest Snapshot of every registered provider.
// Refresh replaces the whole snapshot at once; readers never see a partial refresh.
type Cache struct {
	providers []provider.Provider
	log       *slog.Logger

	mu        sync.RWMutex
	snap      model.Snapshot
	populated bool

	flight singleflight.Group
}

// New creates an empty Cache over the given providers.
func New(providers []provider.Provider, log *slog.Logger) *Cache {
	return &Cache{
		providers: providers,
		log:       log,
		snap:      model.Snapshot{},
	}
}

// Providers returns the registered providers.
func (c *Cache) Providers() []provider.Provider {
	return c.providers
}

// Refresh fetches every provider concurrently and swaps in the new snapshot.
// Concurrent callers share a single in-flight refresh. The shared refresh is
// detached from the cancellation of whichever caller started it; each fetch is
// still bounded by its provider timeout.
func (c *Cache) Refresh(ctx context.Context) model.Snapshot {
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.flight.Do("refresh", func() (any, error) {
		return c.refresh(shared), nil
	})
	return v.(model.Snapshot)
}

func (c *Cache) refresh(ctx context.Context) model.Snapshot {
	results := make([]model.Fields, len(c.providers))

	var g errgroup.Group
	for i, p := range c.providers {
		g.Go(func() error {
			results[i] = p.Fetch(ctx)
			return nil
		})
	}
	_ = g.Wait()

	snap := make(model.Snapshot, len(c.providers))
	for i, p := range c.providers {
		snap[p.Name()] = results[i]
		if provider.IsDefault(results[i]) {
			c.log.Warn("provider returned fallback reading", "provider", p.Name())
		} else {
			c.log.Debug("provider refreshed", "provider", p.Name(), "index", results[i][provider.KeyIndex])
		}
	}

	c.mu.Lock()
	c.snap = snap
	c.populated = true
	c.mu.Unlock()

	return snap
}

// Snapshot returns the current snapshot. The returned map must not be modified.
func (c *Cache) Snapshot() model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Populated reports whether at least one refresh has completed.
func (c *Cache) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

// Ensure returns the current snapshot, refreshing first if the cache has never been populated.
func (c *Cache) Ensure(ctx context.Context) model.Snapshot {
	if c.Populated() {
		return c.Snapshot()
	}
	c.log.Info("provider cache empty, fetching data")
	return c.Refresh(ctx)
}
