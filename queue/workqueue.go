// Package queue implements the single-consumer FIFO background task
// described in spec.md §5: request-dispatch and media-stream contexts post
// work items (never blocking), and one background goroutine drains them in
// order, owning every WS client call. Adapted from the teacher's
// internal/concurrency.Executor, which already wraps github.com/eapache/queue
// as the backing ring; the teacher's worker loop busy-spins on an empty
// queue ("for { select { default: ... } }"), which burns a full core even
// when idle, so this version blocks on a sync.Cond instead.
package queue

import (
	"sync"

	"github.com/eapache/queue"
)

// Item is a unit of work posted to a WorkQueue. Items run on the
// WorkQueue's single consumer goroutine, in FIFO order relative to other
// items posted for the same channel (spec.md §5: "message ordering within
// a channel is FIFO because the queue is single-consumer").
type Item func()

// WorkQueue is a bounded-only-by-memory, single-consumer FIFO of Items.
// Post is safe to call from any goroutine, including from within a
// running Item (used for self-repost/cooperative-polling handlers like
// RECV_RESULT and RECV_POLL).
type WorkQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   *queue.Queue
	closed  bool
	stopped chan struct{}
}

// New creates a WorkQueue and starts its consumer goroutine.
func New() *WorkQueue {
	q := &WorkQueue{
		items:   queue.New(),
		stopped: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Post enqueues an Item for execution. Post never blocks and never runs
// the item synchronously, so it is always safe to call from the
// request-dispatch or media-stream contexts.
func (q *WorkQueue) Post(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items.Add(item)
	q.cond.Signal()
}

// Close stops accepting new items, lets the consumer drain whatever is
// already queued, and blocks until the consumer goroutine has exited.
func (q *WorkQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.stopped
}

func (q *WorkQueue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for q.items.Length() == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.items.Length() == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		item := q.items.Remove().(Item)
		q.mu.Unlock()

		item()
	}
}
