// Package coordinator implements the lock-protected offset allocators
// extraction producers use to hand out "same API call, increasing
// offset" work to a worker pool when the total item count isn't known up
// front (spec §4.7). The single-mutex, check-then-reserve pattern mirrors
// the teacher's runtime.Operator dedup+slot-reservation logic
// (runtime/fanout.go): one lock guards both the decision to hand out a
// claim and the bookkeeping that decision depends on.
package coordinator

import "sync"

// OffsetCoordinator hands out (offset, limit) ranges over a single,
// unbounded listing. Workers that observe an empty page call
// MarkWorkerDone; once every registered worker has done so, ClaimRange
// permanently returns ok=false.
type OffsetCoordinator struct {
	mu sync.Mutex

	stride       int64
	nextOffset   int64
	totalWorkers int
	workersDone  int
}

// New creates an OffsetCoordinator handing out ranges of size stride.
func New(stride int64) *OffsetCoordinator {
	if stride <= 0 {
		stride = 1
	}
	return &OffsetCoordinator{stride: stride}
}

// SetTotalWorkers records how many workers participate, which
// MarkWorkerDone compares against to decide when the listing is
// exhausted.
func (c *OffsetCoordinator) SetTotalWorkers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalWorkers = n
}

// ClaimRange reserves the next (offset, limit) pair, or reports ok=false
// once every worker has reported end-of-data.
func (c *OffsetCoordinator) ClaimRange() (offset int64, limit int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.totalWorkers > 0 && c.workersDone >= c.totalWorkers {
		return 0, 0, false
	}

	offset = c.nextOffset
	c.nextOffset += c.stride
	return offset, c.stride, true
}

// MarkWorkerDone records that the calling worker observed an empty page.
// Once workersDone reaches totalWorkers, every subsequent ClaimRange
// returns ok=false.
func (c *OffsetCoordinator) MarkWorkerDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workersDone++
}

// SeekOffset advances nextOffset to resume a checkpointed listing, so the
// next ClaimRange starts at offset rather than re-claiming ranges already
// recorded as processed. Only moves the offset forward.
func (c *OffsetCoordinator) SeekOffset(offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset > c.nextOffset {
		c.nextOffset = offset
	}
}

// CurrentOffset reports the next offset ClaimRange would hand out, i.e.
// how far the listing has progressed so far. Callers persist this into a
// checkpoint so a later SeekOffset resumes from it instead of restarting.
func (c *OffsetCoordinator) CurrentOffset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextOffset
}
