// Package queue carries typed job events between the API and the workers.
package queue

import (
	"context"
	"sync"
	"time"
)

// Event announces that a job row is ready to run. The job row is the source
// of truth; an event is only a wake-up call and may be delivered twice.
type Event struct {
	JobID      string    `json:"jobId"`
	Type       string    `json:"type"`
	SessionID  string    `json:"sessionId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

type Queue interface {
	Publish(ctx context.Context, ev Event) error
	// Pop returns the oldest event, or false when the queue is empty.
	Pop(ctx context.Context) (Event, bool, error)
}

type MemoryQueue struct {
	mu    sync.Mutex
	items []Event
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: make([]Event, 0, 64)}
}

func (q *MemoryQueue) Publish(_ context.Context, ev Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, ev)
	return nil
}

func (q *MemoryQueue) Pop(_ context.Context) (Event, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false, nil
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true, nil
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
