package webhooks

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Delivery is one callback POST waiting to be sent.
type Delivery struct {
	ID            string
	TenantID      string
	RunID         string
	EventType     string
	URL           string
	Secret        string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
}

// Queue holds pending deliveries in memory. Deliveries do not survive a restart;
// the run itself is persisted by the store and can be fetched again.
type Queue struct {
	mu    sync.Mutex
	items map[string]*Delivery
	dead  []Delivery
}

func NewQueue() *Queue {
	return &Queue{items: map[string]*Delivery{}}
}

// Enqueue schedules d for immediate delivery and returns its id.
func (q *Queue) Enqueue(d Delivery) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.NextAttemptAt.IsZero() {
		d.NextAttemptAt = time.Now()
	}
	q.items[d.ID] = &d
	return d.ID
}

// Due returns up to limit deliveries whose next attempt is not after now, oldest first.
func (q *Queue) Due(now time.Time, limit int) []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Delivery
	for _, d := range q.items {
		if !d.NextAttemptAt.After(now) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Mark records an attempt. Successful deliveries leave the queue; failed ones
// are retried at next.
func (q *Queue) Mark(id string, success bool, next time.Time, lastErr string, code int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.items[id]
	if !ok {
		return
	}
	if success {
		delete(q.items, id)
		return
	}
	d.Attempts++
	d.NextAttemptAt = next
	d.LastError = lastErr
	d.ResponseCode = code
}

// Fail moves a delivery to the dead-letter list.
func (q *Queue) Fail(id string, lastErr string, code int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.items[id]
	if !ok {
		return
	}
	delete(q.items, id)
	d.Attempts++
	d.LastError = lastErr
	d.ResponseCode = code
	q.dead = append(q.dead, *d)
}

// Pending counts deliveries still queued.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dead returns a copy of the dead-lettered deliveries.
func (q *Queue) Dead() []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Delivery(nil), q.dead...)
}
