package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"deskhub.org/internal/ids"
	"deskhub.org/internal/obs"
	"deskhub.org/internal/store"
)

const defaultRetryCeiling = 3

// Queue is the write-behind sync queue: an ordered, persisted list of
// mutations deferred for later delivery. Persisted after every mutation
// so a process restart loses no pending work.
type Queue struct {
	store   store.Store
	now     func() time.Time
	log     *zap.Logger
	limiter *rate.Limiter
	ceiling int
	onDrop  func(PendingItem)
}

// QueueOption configures Queue behavior.
type QueueOption func(*Queue)

// WithRetryCeiling changes the per-item attempt limit.
func WithRetryCeiling(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ceiling = n
		}
	}
}

// WithQueueClock overrides the time source.
func WithQueueClock(fn func() time.Time) QueueOption {
	return func(q *Queue) {
		if fn != nil {
			q.now = fn
		}
	}
}

// WithDropReporter registers the callback invoked when an item exhausts
// its retries. Dropping silently is a defect; the default logs loudly.
func WithDropReporter(fn func(PendingItem)) QueueOption {
	return func(q *Queue) {
		if fn != nil {
			q.onDrop = fn
		}
	}
}

// WithDispatchLimit throttles replay attempts during a drain pass.
func WithDispatchLimit(l *rate.Limiter) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.limiter = l
		}
	}
}

func NewQueue(st store.Store, opts ...QueueOption) (*Queue, error) {
	if st == nil {
		return nil, fmt.Errorf("tickets: store is required")
	}
	q := &Queue{
		store:   st,
		now:     time.Now,
		log:     obs.Logger(),
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		ceiling: defaultRetryCeiling,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.onDrop == nil {
		q.onDrop = func(item PendingItem) {
			q.log.Warn("sync item dropped after retry ceiling",
				zap.String("id", item.ID),
				zap.String("kind", string(item.Kind)),
			)
		}
	}
	return q, nil
}

// Enqueue appends a deferred mutation and persists the queue.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, ticketID string, payload json.RawMessage) (PendingItem, error) {
	item := PendingItem{
		ID:         ids.New(),
		Kind:       kind,
		TicketID:   ticketID,
		Payload:    payload,
		EnqueuedAt: q.now(),
	}
	items, err := q.load(ctx)
	if err != nil {
		return PendingItem{}, err
	}
	items = append(items, item)
	if err := q.save(ctx, items); err != nil {
		return PendingItem{}, err
	}
	q.log.Debug("sync item enqueued",
		zap.String("id", item.ID),
		zap.String("kind", string(kind)),
	)
	return item, nil
}

// Pending returns the current queue contents in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]PendingItem, error) {
	return q.load(ctx)
}

// Process walks the queue once in enqueue order, applying each item.
// Items that fail stay with an incremented retry count until the ceiling,
// at which point they are removed and reported. A failed item is retried
// on the next drain pass, not re-attempted within this one.
func (q *Queue) Process(ctx context.Context, apply func(context.Context, PendingItem) error) error {
	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	var remaining []PendingItem
	for i, item := range items {
		if err := q.limiter.Wait(ctx); err != nil {
			// canceled mid-pass: keep this and all later items untouched
			remaining = append(remaining, items[i:]...)
			break
		}
		if err := apply(ctx, item); err != nil {
			item.RetryCount++
			if item.RetryCount >= q.ceiling {
				obs.SyncItemsDropped.Inc()
				q.onDrop(item)
			} else {
				q.log.Debug("sync item failed, will retry",
					zap.String("id", item.ID),
					zap.Int("retry_count", item.RetryCount),
					zap.Error(err),
				)
				remaining = append(remaining, item)
			}
		}
		// persist after every item so a restart mid-pass loses nothing
		if err := q.save(ctx, append(append([]PendingItem{}, remaining...), items[i+1:]...)); err != nil {
			return err
		}
	}
	return q.save(ctx, remaining)
}

// load treats only a missing key as an empty queue. Any other store
// failure must propagate: acting on an empty read here would let the next
// save overwrite the persisted queue and silently lose pending work.
func (q *Queue) load(ctx context.Context) ([]PendingItem, error) {
	raw, err := q.store.Get(ctx, store.KeySyncQueue)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("tickets: load sync queue: %w", err)
	}
	var items []PendingItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("tickets: decode sync queue: %w", err)
	}
	return items, nil
}

func (q *Queue) save(ctx context.Context, items []PendingItem) error {
	if items == nil {
		items = []PendingItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("tickets: encode sync queue: %w", err)
	}
	if err := q.store.Set(ctx, store.KeySyncQueue, b); err != nil {
		return err
	}
	obs.SyncQueueDepth.Set(float64(len(items)))
	return nil
}
