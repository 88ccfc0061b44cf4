package crawler

import (
	"sync"

	"github.com/alvmarrod/pagedepth/internal/storage"
)

// Queue is an unbounded FIFO of fetched pages between crawl workers and the
// single graph writer. Push never blocks.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*storage.Page
	stopped bool
}

// NewQueue creates a new page queue
func NewQueue() *Queue {
	q := &Queue{
		items: make([]*storage.Page, 0),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a page. Returns false if the queue has been stopped.
func (q *Queue) Push(page *storage.Page) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	q.items = append(q.items, page)
	q.cond.Signal()

	return true
}

// Pop removes and returns the first page.
// Blocks if queue is empty and not stopped.
// Returns (page, true) if successful, (nil, false) if stopped and empty.
func (q *Queue) Pop() (*storage.Page, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			page := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			return page, true
		}

		if q.stopped {
			return nil, false
		}

		q.cond.Wait()
	}
}

// IsEmpty returns true if the queue has no items
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Size returns the current number of items in the queue
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop stops accepting new pages.
// A consumer blocked on Pop drains the remaining items, then receives false.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.cond.Broadcast()
}
