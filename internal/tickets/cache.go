package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"deskhub.org/internal/store"
)

const defaultMaxAge = 2 * time.Minute

// Cache is the persisted ticket snapshot with a staleness window. It is
// the single writer of the ticket cache key.
type Cache struct {
	store  store.Store
	now    func() time.Time
	maxAge time.Duration
}

// CacheOption configures Cache behavior.
type CacheOption func(*Cache)

// WithMaxAge overrides the staleness window.
func WithMaxAge(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithCacheClock overrides the time source (useful for tests).
func WithCacheClock(fn func() time.Time) CacheOption {
	return func(c *Cache) {
		if fn != nil {
			c.now = fn
		}
	}
}

func NewCache(st store.Store, opts ...CacheOption) (*Cache, error) {
	if st == nil {
		return nil, fmt.Errorf("tickets: store is required")
	}
	c := &Cache{
		store:  st,
		now:    time.Now,
		maxAge: defaultMaxAge,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Load returns the persisted snapshot, or nil when none exists or it
// cannot be decoded (a corrupt cache behaves like an empty one).
func (c *Cache) Load(ctx context.Context) *Snapshot {
	raw, err := c.store.Get(ctx, store.KeyTicketCache)
	if err != nil {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}
	return &snap
}

// Store replaces the snapshot wholesale. Last write wins: an older fetch
// settling after a newer one still overwrites.
func (c *Cache) Store(ctx context.Context, snap *Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("tickets: encode snapshot: %w", err)
	}
	return c.store.Set(ctx, store.KeyTicketCache, b)
}

// IsStale reports whether the snapshot is past the staleness window.
func (c *Cache) IsStale(snap *Snapshot) bool {
	if snap == nil {
		return true
	}
	return c.now().Sub(snap.CapturedAt) > c.maxAge
}
