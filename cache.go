package gsheets

import (
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/gsheets/internal/logger"
)

// gridCache memoises raw worksheet grids per canonical reference key. Each
// entry carries its own mutex so concurrent reads for the same key serialise
// around the fetch (one remote call, everyone gets the result) while reads
// for different keys proceed independently.
type gridCache struct {
	mu      sync.Mutex
	entries map[string]*gridEntry
}

type gridEntry struct {
	mu        sync.Mutex
	grid      [][]string
	fetchedAt time.Time
	valid     bool
}

func newGridCache() *gridCache {
	return &gridCache{entries: make(map[string]*gridEntry)}
}

func (c *gridCache) entry(key string) *gridEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &gridEntry{}
		c.entries[key] = e
	}
	return e
}

// getOrFetch returns the cached grid for key when it is younger than ttl,
// otherwise invokes fetch and stores the result. A ttl of zero or less
// disables caching and calls fetch directly. The returned grid is shared;
// callers must treat it as read-only.
func (c *gridCache) getOrFetch(key string, ttl time.Duration, fetch func() ([][]string, error)) ([][]string, error) {
	if ttl <= 0 {
		return fetch()
	}

	e := c.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.valid && time.Since(e.fetchedAt) < ttl {
		logger.Debug("cache hit for %s", key)
		return e.grid, nil
	}

	logger.Debug("cache miss for %s, fetching", key)
	grid, err := fetch()
	if err != nil {
		return nil, err
	}

	e.grid = grid
	e.fetchedAt = time.Now()
	e.valid = true
	return grid, nil
}

// invalidate drops every entry whose key starts with prefix. Write paths
// pass the spreadsheet+worksheet key prefix so all option variants (formula
// rendering, etc.) of the same worksheet are dropped together.
func (c *gridCache) invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			logger.Debug("cache invalidated: %s", key)
		}
	}
}

// reset drops all entries. Used when the credential or client is replaced.
func (c *gridCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*gridEntry)
}
