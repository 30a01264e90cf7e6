package tickets

import (
	"encoding/json"
	"errors"
	"time"

	"deskhub.org/internal/api"
)

var (
	// ErrOffline indicates no live fetch is possible and no snapshot
	// exists to fall back on.
	ErrOffline = errors.New("tickets: offline and no cached snapshot")
)

// Snapshot is the persisted ticket cache: one page of tickets plus the
// capture metadata needed for staleness decisions. Replaced wholesale on
// every successful fetch.
type Snapshot struct {
	Tickets      []api.Ticket           `json:"tickets"`
	CapturedAt   time.Time              `json:"captured_at"`
	LastSyncedAt time.Time              `json:"last_synced_at"`
	TotalCount   int                    `json:"total_count"`
	Filters      *api.ListTicketsParams `json:"filters,omitempty"`
}

// Kind classifies a deferred mutation.
type Kind string

const (
	KindCreate  Kind = "create"
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
	KindRefresh Kind = "refresh"
)

// PendingItem is one deferred mutation awaiting replay. RetryCount grows
// monotonically until the ceiling, after which the item is dropped and
// reported.
type PendingItem struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	TicketID   string          `json:"ticket_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
}

// Result is what a ticket read returns: the data plus where it came from.
// Staleness is reported, never hidden.
type Result struct {
	Tickets    []api.Ticket
	TotalCount int
	FromCache  bool
	Stale      bool
	CapturedAt time.Time
}
