// AngelaMos | 2026
// notifier.go

package notify

import (
	"context"
	"log/slog"
	"sync"
)

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error {
	return nil
}

// Send delivers e and logs any failure. Notifications never fail the
// operation that produced them.
func Send(ctx context.Context, n Notifier, e Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e); err != nil {
		slog.Warn("notification failed",
			"kind", e.Kind,
			"event_id", e.ID,
			"user_id", e.UserID,
			"error", err,
		)
	}
}

// Recorder keeps every event it receives. Tests use it to observe side
// effects.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
