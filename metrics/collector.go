// Package metrics is a single mutex-guarded accumulator for one
// extraction or restoration run (spec §4.5). It is a leaf package: no
// internal dependencies beyond types. Grounded on the teacher's
// metrics/collector.go — a single sync.Mutex and a value-type Snapshot
// that copies every field (and clones maps) so callers never hold a
// reference into live state. The increment methods do not check for a nil
// receiver; calling them on a nil *Collector panics.
package metrics

import (
	"sync"
	"time"

	"github.com/lookervault/lookervault/types"
)

// WorkerError records one worker-observed failure, retained for the
// RestorationSummary.worker_errors / ExtractionResult.errors surfaces.
type WorkerError struct {
	ContentType types.ContentType
	ContentID   string
	Message     string
	OccurredAt  time.Time
}

// Snapshot is an immutable point-in-time view of all counters. Safe to
// read concurrently after it is returned.
type Snapshot struct {
	ItemsProcessed   int64
	ItemsByType      map[types.ContentType]int64
	BatchesCompleted int64
	TotalByType      map[types.ContentType]int64
	ErrorCount       int64
	WorkerErrors     []WorkerError
	StartTime        time.Time
}

// ThroughputPerSecond returns ItemsProcessed divided by elapsed time since
// StartTime, the derived throughput figure the CLI status surface reports.
func (s Snapshot) ThroughputPerSecond(now time.Time) float64 {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.ItemsProcessed) / elapsed
}

// Collector accumulates metrics during a single run. Every mutator holds
// the lock only long enough to update state — no I/O happens while
// locked.
type Collector struct {
	mu sync.Mutex

	itemsProcessed   int64
	itemsByType      map[types.ContentType]int64
	batchesCompleted int64
	totalByType      map[types.ContentType]int64
	errorCount       int64
	workerErrors     []WorkerError
	startTime        time.Time
}

// NewCollector creates a Collector with its clock started at construction.
func NewCollector() *Collector {
	return &Collector{
		itemsByType: make(map[types.ContentType]int64),
		totalByType: make(map[types.ContentType]int64),
		startTime:   time.Now(),
	}
}

// RecordBatch records one completed batch of n items for contentType.
func (c *Collector) RecordBatch(contentType types.ContentType, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.itemsProcessed += int64(n)
	c.itemsByType[contentType] += int64(n)
	c.totalByType[contentType] += int64(n)
	c.batchesCompleted++
}

// RecordError records a worker-observed failure.
func (c *Collector) RecordError(we WorkerError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errorCount++
	c.workerErrors = append(c.workerErrors, we)
}

// Snapshot returns a copy of all counters, safe for the caller to retain.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	itemsByType := make(map[types.ContentType]int64, len(c.itemsByType))
	for k, v := range c.itemsByType {
		itemsByType[k] = v
	}
	totalByType := make(map[types.ContentType]int64, len(c.totalByType))
	for k, v := range c.totalByType {
		totalByType[k] = v
	}
	workerErrors := make([]WorkerError, len(c.workerErrors))
	copy(workerErrors, c.workerErrors)

	return Snapshot{
		ItemsProcessed:   c.itemsProcessed,
		ItemsByType:      itemsByType,
		BatchesCompleted: c.batchesCompleted,
		TotalByType:      totalByType,
		ErrorCount:       c.errorCount,
		WorkerErrors:     workerErrors,
		StartTime:        c.startTime,
	}
}
