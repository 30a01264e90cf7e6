package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"deskhub.org/internal/store"
)

func newTestQueue(t *testing.T, opts ...QueueOption) (*Queue, store.Store) {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	q, err := NewQueue(st, opts...)
	require.NoError(t, err)
	return q, st
}

func TestQueueConvergesAfterTransientFailures(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	item, err := q.Enqueue(ctx, KindCreate, "", json.RawMessage(`{"subject":"x"}`))
	require.NoError(t, err)

	failures := 2
	attempts := 0
	apply := func(_ context.Context, it PendingItem) error {
		attempts++
		if attempts <= failures {
			return errors.New("backend unreachable")
		}
		// the succeeding attempt observes the accumulated retry count
		require.Equal(t, failures, it.RetryCount)
		require.Equal(t, item.ID, it.ID)
		return nil
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Process(ctx, apply))
	}

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending, "succeeded item must leave the queue")
	require.Equal(t, 3, attempts)
}

func TestQueueDropsAtCeilingAndReports(t *testing.T) {
	var dropped []PendingItem
	q, _ := newTestQueue(t, WithDropReporter(func(it PendingItem) {
		dropped = append(dropped, it)
	}))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, KindDelete, "t9", nil)
	require.NoError(t, err)

	attempts := 0
	alwaysFail := func(context.Context, PendingItem) error {
		attempts++
		return errors.New("permanent failure")
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Process(ctx, alwaysFail))
	}

	require.Equal(t, defaultRetryCeiling, attempts, "never a ceiling+1-th attempt")
	require.Len(t, dropped, 1, "drop must be reported exactly once")
	require.Equal(t, defaultRetryCeiling, dropped[0].RetryCount)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestQueueProcessesInEnqueueOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, KindCreate, "", json.RawMessage(`1`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, KindUpdate, "t1", json.RawMessage(`2`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, KindDelete, "t2", nil)
	require.NoError(t, err)

	var order []Kind
	require.NoError(t, q.Process(ctx, func(_ context.Context, it PendingItem) error {
		order = append(order, it.Kind)
		return nil
	}))
	require.Equal(t, []Kind{KindCreate, KindUpdate, KindDelete}, order)
}

func TestQueueFailedItemRetriedNextPassNotSamePass(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, KindCreate, "", json.RawMessage(`{}`))
	require.NoError(t, err)

	attempts := 0
	require.NoError(t, q.Process(ctx, func(context.Context, PendingItem) error {
		attempts++
		return errors.New("nope")
	}))
	require.Equal(t, 1, attempts, "one attempt per item per pass")

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 1, pending[0].RetryCount)
}

// flakyStore fails a fixed number of reads, simulating a transient
// backend hiccup on the shared state store.
type flakyStore struct {
	store.Store
	failGets int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGets > 0 {
		f.failGets--
		return nil, errors.New("store unavailable")
	}
	return f.Store.Get(ctx, key)
}

func TestQueueEnqueueKeepsPendingWorkOnReadFailure(t *testing.T) {
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	flaky := &flakyStore{Store: st}
	q, err := NewQueue(flaky)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = q.Enqueue(ctx, KindCreate, "", json.RawMessage(`1`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, KindUpdate, "t1", json.RawMessage(`2`))
	require.NoError(t, err)

	// a transient read failure must surface, not be mistaken for an
	// empty queue and overwritten
	flaky.failGets = 1
	_, err = q.Enqueue(ctx, KindDelete, "t2", nil)
	require.Error(t, err)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2, "earlier items must survive the failed enqueue")

	// once the store recovers the deferred mutation can be enqueued
	_, err = q.Enqueue(ctx, KindDelete, "t2", nil)
	require.NoError(t, err)
	pending, err = q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
}

func TestQueueSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	st, err := store.NewFileStore(path)
	require.NoError(t, err)
	q, err := NewQueue(st)
	require.NoError(t, err)
	ctx := context.Background()

	item, err := q.Enqueue(ctx, KindUpdate, "t5", json.RawMessage(`{"status":"closed"}`))
	require.NoError(t, err)

	// simulate a process restart
	st2, err := store.NewFileStore(path)
	require.NoError(t, err)
	q2, err := NewQueue(st2)
	require.NoError(t, err)

	pending, err := q2.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, item.ID, pending[0].ID)
	require.Equal(t, KindUpdate, pending[0].Kind)
}
