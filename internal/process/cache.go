package process

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/types"
)

// DefaultCacheTTL bounds how often the process table is re-read.
const DefaultCacheTTL = 2 * time.Second

// Lister produces a process list.
type Lister interface {
	Discover(ctx context.Context) ([]types.ProcessRecord, error)
}

// Cache memoizes a Lister for a short TTL. Concurrent misses share a single
// discovery. Failed discoveries are not cached.
type Cache struct {
	lister Lister
	clock  clock.Clock
	ttl    time.Duration

	mu        sync.Mutex
	procs     []types.ProcessRecord
	fetchedAt time.Time
	valid     bool
	alive     func(pid int) bool

	group singleflight.Group
}

// NewCache wraps lister. A non-positive ttl uses DefaultCacheTTL.
func NewCache(lister Lister, ttl time.Duration, clk clock.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Cache{lister: lister, clock: clk, ttl: ttl}
}

// SetLivenessCheck makes cache hits drop processes for which alive reports
// false, so a process that exits inside the TTL is not reported.
func (c *Cache) SetLivenessCheck(alive func(pid int) bool) {
	c.mu.Lock()
	c.alive = alive
	c.mu.Unlock()
}

// Get returns the cached list while it is fresh, otherwise rediscovers.
// The returned slice is owned by the caller.
func (c *Cache) Get(ctx context.Context) ([]types.ProcessRecord, error) {
	if procs, ok := c.fresh(); ok {
		return procs, nil
	}

	// The discovery is shared, so one caller's cancellation must not fail
	// the rest. Command timeouts still bound it.
	dctx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do("discover", func() (any, error) {
		if procs, ok := c.fresh(); ok {
			return procs, nil
		}
		procs, err := c.lister.Discover(dctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.procs = procs
		c.fetchedAt = c.clock.Now()
		c.valid = true
		c.mu.Unlock()
		return procs, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]types.ProcessRecord)), nil
}

// Invalidate forces the next Get to rediscover.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.procs = nil
	c.mu.Unlock()
}

func (c *Cache) fresh() ([]types.ProcessRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.clock.Now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	if c.alive == nil {
		return slices.Clone(c.procs), true
	}
	out := make([]types.ProcessRecord, 0, len(c.procs))
	for _, p := range c.procs {
		if c.alive(p.PID) {
			out = append(out, p)
		}
	}
	return out, true
}
