package tickets

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deskhub.org/internal/api"
	"deskhub.org/internal/store"
)

func newTestCache(t *testing.T, now *time.Time, maxAge time.Duration) *Cache {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	c, err := NewCache(st,
		WithMaxAge(maxAge),
		WithCacheClock(func() time.Time { return *now }),
	)
	require.NoError(t, err)
	return c
}

func TestCacheStalenessBoundary(t *testing.T) {
	t0 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	now := t0
	maxAge := 2 * time.Minute
	c := newTestCache(t, &now, maxAge)
	ctx := context.Background()

	snap := &Snapshot{
		Tickets:    []api.Ticket{{ID: "t1"}},
		CapturedAt: t0,
	}
	require.NoError(t, c.Store(ctx, snap))

	now = t0.Add(maxAge - time.Millisecond)
	require.False(t, c.IsStale(c.Load(ctx)), "just inside the window must be fresh")

	now = t0.Add(maxAge + time.Millisecond)
	require.True(t, c.IsStale(c.Load(ctx)), "just past the window must be stale")
}

func TestCacheReplacedWholesale(t *testing.T) {
	now := time.Now()
	c := newTestCache(t, &now, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, &Snapshot{
		Tickets:    []api.Ticket{{ID: "a"}, {ID: "b"}},
		CapturedAt: now,
		TotalCount: 2,
	}))
	require.NoError(t, c.Store(ctx, &Snapshot{
		Tickets:    []api.Ticket{{ID: "c"}},
		CapturedAt: now,
		TotalCount: 1,
	}))

	snap := c.Load(ctx)
	require.NotNil(t, snap)
	require.Len(t, snap.Tickets, 1)
	require.Equal(t, "c", snap.Tickets[0].ID)
}

func TestCacheMissingAndCorrupt(t *testing.T) {
	now := time.Now()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	c, err := NewCache(st, WithCacheClock(func() time.Time { return now }))
	require.NoError(t, err)
	ctx := context.Background()

	require.Nil(t, c.Load(ctx))
	require.True(t, c.IsStale(nil))

	require.NoError(t, st.Set(ctx, store.KeyTicketCache, []byte(`{broken`)))
	require.Nil(t, c.Load(ctx), "corrupt cache behaves like an empty one")
}
