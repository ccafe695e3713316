// Package workqueue implements the bounded producer-consumer queue the
// extraction orchestrator uses to hand pages of fetched items to its
// worker pool (spec §4.6). It is a thin typed wrapper over a buffered
// channel, the same primitive the teacher's runtime.Operator uses for its
// fan-out work queue (runtime/fanout.go).
package workqueue

import (
	"time"

	"github.com/lookervault/lookervault/codec"
	"github.com/lookervault/lookervault/types"
)

// MinCapacityPerWorker is the floor the spec requires: capacity must be
// at least workers*10, with workers*100 as the intended default.
const MinCapacityPerWorker = 10

// DefaultCapacityPerWorker is the default capacity multiplier.
const DefaultCapacityPerWorker = 100

// WorkItem is one page of fetched items for a single content type.
type WorkItem struct {
	ContentType types.ContentType
	Items       []codec.Value
	BatchNumber int
	IsFinal     bool
}

// Queue is a bounded FIFO of WorkItems. Put blocks when full (the
// producer's natural backpressure); Get blocks when empty.
type Queue struct {
	ch chan WorkItem
}

// New creates a Queue sized for the given worker count. capacityPerWorker
// of zero uses DefaultCapacityPerWorker; values below MinCapacityPerWorker
// are raised to it.
func New(workers int, capacityPerWorker int) *Queue {
	if capacityPerWorker <= 0 {
		capacityPerWorker = DefaultCapacityPerWorker
	}
	if capacityPerWorker < MinCapacityPerWorker {
		capacityPerWorker = MinCapacityPerWorker
	}
	if workers < 1 {
		workers = 1
	}
	return &Queue{ch: make(chan WorkItem, workers*capacityPerWorker)}
}

// Put enqueues item, blocking until there is room.
func (q *Queue) Put(item WorkItem) {
	q.ch <- item
}

// Get dequeues the next item, blocking until one is available or the
// queue is closed. ok is false once the queue is closed and drained.
func (q *Queue) Get() (WorkItem, bool) {
	item, ok := <-q.ch
	return item, ok
}

// GetWithTimeout dequeues the next item, or reports timedOut=true if none
// arrives within the given duration. A closed, drained queue reports
// ok=false (not a timeout).
func (q *Queue) GetWithTimeout(d time.Duration) (item WorkItem, ok bool, timedOut bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case item, ok = <-q.ch:
		return item, ok, false
	case <-timer.C:
		return WorkItem{}, false, true
	}
}

// Close signals shutdown. Consumers already blocked in Get/GetWithTimeout
// observe close only after every buffered item has been drained, per Go
// channel semantics.
func (q *Queue) Close() {
	close(q.ch)
}
