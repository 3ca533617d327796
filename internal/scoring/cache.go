package scoring

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/retrolearn/internal/learning"
)

// candidateCache memoizes candidate fetches per filter for a short TTL.
// Concurrent misses for the same filter share a single fetch.
type candidateCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
	gen     uint64 // bumped on invalidate so in-flight loads don't repopulate stale data
}

type cacheEntry struct {
	candidates []learning.Learning
	expires    time.Time
}

func newCandidateCache(ttl time.Duration) *candidateCache {
	return &candidateCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// get returns cached candidates for key or loads them. The boolean reports
// a cache hit. The shared load is detached from ctx and bounded by timeout,
// so one caller giving up does not fail the others waiting on it.
func (c *candidateCache) get(
	ctx context.Context,
	key string,
	timeout time.Duration,
	load func(context.Context) ([]learning.Learning, error),
) ([]learning.Learning, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expires) {
		return entry.candidates, true, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		candidates, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries[key] = cacheEntry{candidates: candidates, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return candidates, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]learning.Learning), false, nil
	}
}

func (c *candidateCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	clear(c.entries)
}

func filterKey(f learning.Filter) string {
	names := make([]string, 0, len(f.Categories))
	for _, cat := range f.Categories {
		names = append(names, cat.String())
	}
	slices.Sort(names)
	return fmt.Sprintf("%s|%d", strings.Join(slices.Compact(names), ","), f.Limit)
}
