// Package cache holds the latest CheckResult per monitor in memory and
// persists it to a JSON snapshot file so a restart does not start blind.
package cache

import (
	"sort"
	"sync"

	"github.com/hamed0406/upmon/internal/domain"
)

type Cache struct {
	mu      sync.RWMutex
	entries map[domain.Key]domain.CheckResult
}

func New() *Cache {
	return &Cache{entries: make(map[domain.Key]domain.CheckResult)}
}

// Put replaces the entry for r's key.
func (c *Cache) Put(r domain.CheckResult) {
	c.mu.Lock()
	c.entries[r.Key()] = r
	c.mu.Unlock()
}

func (c *Cache) Get(k domain.Key) (domain.CheckResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[k]
	return r, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot copies the entries, optionally filtered to one project, ordered
// by (project, site).
func (c *Cache) Snapshot(projectID string) []domain.CheckResult {
	c.mu.RLock()
	out := make([]domain.CheckResult, 0, len(c.entries))
	for k, r := range c.entries {
		if projectID != "" && k.ProjectID != projectID {
			continue
		}
		out = append(out, r)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].SiteKey < out[j].SiteKey
	})
	return out
}

func (c *Cache) replaceAll(rs []domain.CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.Key]domain.CheckResult, len(rs))
	for _, r := range rs {
		c.entries[r.Key()] = r
	}
}
