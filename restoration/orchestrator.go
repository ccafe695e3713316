// Package restoration also implements the RestorationOrchestrator (spec
// §4.12), which drives a full restore run across a dependency-ordered set
// of ContentTypes. Its shape mirrors extraction.Orchestrator: a per-type
// checkpoint, a bounded work queue, a fixed worker pool, and metrics
// recording — but it reads completed items from the content store and
// writes them through LookerClient via the per-item Restorer, in
// dependency order rather than parallel across types.
package restoration

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lookervault/lookervault/depgraph"
	"github.com/lookervault/lookervault/idmapper"
	"github.com/lookervault/lookervault/log"
	"github.com/lookervault/lookervault/lookerclient"
	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/metrics"
	"github.com/lookervault/lookervault/store"
	"github.com/lookervault/lookervault/types"
)

// defaultCheckpointInterval is how many successfully restored items
// elapse between checkpoint writes when Config.CheckpointInterval is unset.
const defaultCheckpointInterval = 100

// Config parameterizes one restoration run (spec §4.12). Types defaults
// to every ContentType, dependency-ordered, when left empty.
type Config struct {
	Types              []types.ContentType
	Workers            int
	CheckpointInterval int
	SkipIfModified     bool
	DryRun             bool
	Resume             bool

	// MaxRetries is how many additional attempts a failing item gets
	// before landing in the DLQ. LookerClient already retries transient
	// HTTP failures internally (spec §4.4); this is a second, item-level
	// retry for failures surfaced above that layer (e.g. an id mapping
	// not yet recorded because a dependency item hasn't finished
	// restoring on another worker). Zero means no retry.
	MaxRetries int
}

// TypeSummary is the per-ContentType outcome of a restoration run.
type TypeSummary struct {
	ContentType     types.ContentType
	Total           int
	Created         int
	Updated         int
	Skipped         int
	Errors          int
	DurationSeconds float64
	ItemsPerSecond  float64
}

// Summary is the aggregate outcome of a restoration run, spec §4.12's
// RestorationSummary.
type Summary struct {
	SessionID    string
	ByType       map[types.ContentType]*TypeSummary
	Total        int
	Created      int
	Updated      int
	Skipped      int
	Errors       int
	WorkerErrors []metrics.WorkerError
	Duration     time.Duration
}

// Orchestrator drives restoration runs against one Store/Client/Mapper/
// Graph combination.
type Orchestrator struct {
	store    *store.Store
	client   *lookerclient.Client
	mapper   *idmapper.Mapper
	graph    *depgraph.Graph
	restorer *Restorer
	logger   *log.Logger
}

// NewOrchestrator builds an Orchestrator. logger may be nil, in which
// case the orchestrator runs silently.
func NewOrchestrator(st *store.Store, client *lookerclient.Client, mapper *idmapper.Mapper, graph *depgraph.Graph, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		client:   client,
		mapper:   mapper,
		graph:    graph,
		restorer: New(client, mapper),
		logger:   logger,
	}
}

func (o *Orchestrator) logInfo(msg string, fields ...zap.Field) {
	if o.logger != nil {
		o.logger.Info(msg, fields...)
	}
}

func (o *Orchestrator) logWarn(msg string, fields ...zap.Field) {
	if o.logger != nil {
		o.logger.Warn(msg, fields...)
	}
}

// Run executes one restoration according to cfg, processing ContentTypes
// in dependency order (spec §4.9): a type only starts once every type it
// depends on has completed. A dependency that failed to complete causes
// its dependents to be skipped with a DependencyError recorded rather
// than aborting the whole run.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, cfg Config) (Summary, error) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	checkpointInterval := cfg.CheckpointInterval
	if checkpointInterval <= 0 {
		checkpointInterval = defaultCheckpointInterval
	}

	requested := cfg.Types
	if len(requested) == 0 {
		requested = types.AllContentTypes
	}
	order := o.graph.TopologicalOrder(requested)

	sess := &types.Session{
		ID:        sessionID,
		Kind:      types.SessionKindRestoration,
		Status:    types.SessionRunning,
		StartedAt: time.Now(),
	}
	if err := o.store.PutSession(ctx, sess); err != nil {
		return Summary{}, &lverrors.StorageError{Op: "put_session", Err: err}
	}
	o.logInfo("restoration run started", zap.Int("content_types", len(order)), zap.Int("workers", workers))

	collector := metrics.NewCollector()
	summary := Summary{SessionID: sessionID, ByType: make(map[types.ContentType]*TypeSummary, len(order))}
	failed := make(map[types.ContentType]bool)

	for _, ct := range order {
		if err := ctx.Err(); err != nil {
			sess.Status = types.SessionCancelled
			_ = o.store.UpdateSession(context.WithoutCancel(ctx), sess)
			return o.finalize(summary, collector), lverrors.Cancelled
		}

		if dep, blocked := o.blockedByFailedDependency(ct, requested, failed); blocked {
			o.logWarn("skipping content type, dependency failed", zap.String("content_type", ct.String()), zap.String("dependency", dep.String()))
			failed[ct] = true
			depErr := &lverrors.DependencyError{Msg: ct.String() + " depends on failed type " + dep.String()}
			collector.RecordError(metrics.WorkerError{
				ContentType: ct,
				Message:     depErr.Error(),
				OccurredAt:  time.Now(),
			})
			continue
		}

		ts, runErr := o.runType(ctx, sessionID, ct, cfg, workers, checkpointInterval, collector)
		summary.ByType[ct] = ts
		summary.Total += ts.Total
		summary.Created += ts.Created
		summary.Updated += ts.Updated
		summary.Skipped += ts.Skipped
		summary.Errors += ts.Errors

		switch {
		case runErr != nil && runErr == lverrors.Cancelled:
			sess.Status = types.SessionCancelled
			_ = o.store.UpdateSession(context.WithoutCancel(ctx), sess)
			return o.finalize(summary, collector), runErr
		case runErr != nil:
			failed[ct] = true
		case ts.Total > 0 && ts.Errors == ts.Total:
			// Every item of this type failed: treat the type itself as
			// failed so dependents don't restore against a destination
			// that is missing the whole dependency.
			failed[ct] = true
		}
	}

	now := time.Now()
	if len(failed) > 0 {
		sess.Status = types.SessionFailed
	} else {
		sess.Status = types.SessionCompleted
	}
	sess.CompletedAt = &now
	snap := collector.Snapshot()
	sess.ItemsProcessed = snap.ItemsProcessed
	sess.ErrorCount = snap.ErrorCount
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return Summary{}, &lverrors.StorageError{Op: "update_session", Err: err}
	}

	return o.finalize(summary, collector), nil
}

func (o *Orchestrator) finalize(summary Summary, collector *metrics.Collector) Summary {
	snap := collector.Snapshot()
	summary.WorkerErrors = snap.WorkerErrors
	summary.Duration = time.Since(snap.StartTime)
	return summary
}

// blockedByFailedDependency reports whether ct transitively depends
// (within the requested subset) on a ContentType that already failed
// this run.
func (o *Orchestrator) blockedByFailedDependency(ct types.ContentType, requested []types.ContentType, failed map[types.ContentType]bool) (types.ContentType, bool) {
	inSubset := make(map[types.ContentType]bool, len(requested))
	for _, t := range requested {
		inSubset[t] = true
	}

	visited := make(map[types.ContentType]bool)
	var walk func(t types.ContentType) (types.ContentType, bool)
	walk = func(t types.ContentType) (types.ContentType, bool) {
		if visited[t] {
			return 0, false
		}
		visited[t] = true
		for _, dep := range o.graph.Dependencies(t) {
			if !inSubset[dep] {
				continue
			}
			if failed[dep] {
				return dep, true
			}
			if blocker, blocked := walk(dep); blocked {
				return blocker, true
			}
		}
		return 0, false
	}
	return walk(ct)
}

// runType restores every active, not-yet-completed item of one
// ContentType: list candidates, skip already-completed ids (resume) and
// skip_if_modified matches, fan out across a worker pool, checkpoint
// every checkpointInterval successes, and DLQ permanent per-item
// failures without aborting the type.
func (o *Orchestrator) runType(ctx context.Context, sessionID string, ct types.ContentType, cfg Config, workers, checkpointInterval int, collector *metrics.Collector) (*TypeSummary, error) {
	start := time.Now()
	ts := &TypeSummary{ContentType: ct}

	cp, err := o.loadOrCreateCheckpoint(ctx, sessionID, ct, cfg)
	if err != nil {
		return ts, err
	}
	completed := make(map[string]bool, len(cp.State.CompletedIDs))
	for _, id := range cp.State.CompletedIDs {
		completed[id] = true
	}

	items, err := o.store.ListContent(ctx, store.ListContentOptions{ContentType: ct, HasContentType: true, IncludeContentData: true})
	if err != nil {
		return ts, &lverrors.StorageError{Op: "list_content", Err: err}
	}

	var pending []*types.ContentItem
	for _, item := range items {
		if completed[item.ID] {
			continue
		}
		pending = append(pending, item)
	}
	ts.Total = len(pending)

	jobs := make(chan *types.ContentItem)
	results := make(chan itemOutcome)

	go func() {
		defer close(jobs)
		for _, item := range pending {
			select {
			case <-ctx.Done():
				return
			case jobs <- item:
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			o.worker(ctx, ct, cfg, jobs, results)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	completedIDs := append([]string(nil), cp.State.CompletedIDs...)
	sinceCheckpoint := 0

	for outcome := range results {
		if outcome.cancelled {
			continue
		}

		collector.RecordBatch(ct, 1)
		switch {
		case outcome.skipped:
			ts.Skipped++
		case outcome.err != nil:
			ts.Errors++
			collector.RecordError(metrics.WorkerError{
				ContentType: ct,
				ContentID:   outcome.item.ID,
				Message:     outcome.err.Error(),
				OccurredAt:  time.Now(),
			})
			if dlqErr := o.store.DLQAdd(ctx, &types.DLQEntry{
				SessionID:    sessionID,
				ContentType:  ct,
				ContentID:    outcome.item.ID,
				ContentData:  outcome.item.ContentData,
				ErrorType:    errorTypeName(outcome.err),
				ErrorMessage: outcome.err.Error(),
				FailedAt:     time.Now(),
			}); dlqErr != nil {
				o.logWarn("failed to record dlq entry", zap.String("content_id", outcome.item.ID), zap.Error(dlqErr))
			}
		default:
			switch outcome.result.Operation {
			case OperationCreate:
				ts.Created++
			case OperationUpdate:
				ts.Updated++
			}
			completedIDs = append(completedIDs, outcome.item.ID)
			sinceCheckpoint++
		}

		if sinceCheckpoint >= checkpointInterval {
			cp.State.CompletedIDs = completedIDs
			cp.ItemCount = int64(len(completedIDs))
			if _, err := o.store.PutCheckpoint(ctx, cp); err != nil {
				return ts, &lverrors.StorageError{Op: "put_checkpoint", Err: err}
			}
			sinceCheckpoint = 0
		}
	}

	cp.State.CompletedIDs = completedIDs
	cp.ItemCount = int64(len(completedIDs))
	ts.DurationSeconds = time.Since(start).Seconds()
	if ts.DurationSeconds > 0 {
		ts.ItemsPerSecond = float64(ts.Total) / ts.DurationSeconds
	}

	if ctx.Err() != nil {
		if _, err := o.store.PutCheckpoint(context.WithoutCancel(ctx), cp); err != nil {
			return ts, &lverrors.StorageError{Op: "put_checkpoint", Err: err}
		}
		return ts, lverrors.Cancelled
	}

	now := time.Now()
	cp.CompletedAt = &now
	if _, err := o.store.PutCheckpoint(ctx, cp); err != nil {
		return ts, &lverrors.StorageError{Op: "put_checkpoint", Err: err}
	}
	o.logInfo("content type restoration completed", zap.String("content_type", ct.String()), zap.Int64("items", cp.ItemCount))

	return ts, nil
}

type itemOutcome struct {
	item      *types.ContentItem
	result    Result
	skipped   bool
	cancelled bool
	err       error
}

func (o *Orchestrator) worker(ctx context.Context, ct types.ContentType, cfg Config, jobs <-chan *types.ContentItem, results chan<- itemOutcome) {
	for item := range jobs {
		if err := ctx.Err(); err != nil {
			results <- itemOutcome{item: item, cancelled: true}
			continue
		}

		if cfg.SkipIfModified {
			skip, err := o.restorer.ShouldSkip(ctx, item)
			if err == nil && skip {
				results <- itemOutcome{item: item, skipped: true}
				continue
			}
		}

		res, err := o.restorer.Restore(ctx, item, cfg.DryRun)
		for attempt := 0; err != nil && attempt < cfg.MaxRetries && ctx.Err() == nil; attempt++ {
			if sleepErr := sleepRetryBackoff(ctx, attempt+1); sleepErr != nil {
				break
			}
			res, err = o.restorer.Restore(ctx, item, cfg.DryRun)
		}
		results <- itemOutcome{item: item, result: res, err: err}
	}
}

// sleepRetryBackoff waits between item-level retries, doubling each
// attempt up to a 30s cap.
func sleepRetryBackoff(ctx context.Context, attempt int) error {
	backoff := time.Second * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

func errorTypeName(err error) string {
	switch err.(type) {
	case *lverrors.IDMappingError:
		return "id_mapping"
	case *lverrors.ValidationError:
		return "validation"
	case *lverrors.DeserializationError:
		return "deserialization"
	case *lverrors.APIError:
		return "api"
	case *lverrors.StorageError:
		return "storage"
	default:
		return "unknown"
	}
}

func (o *Orchestrator) loadOrCreateCheckpoint(ctx context.Context, sessionID string, ct types.ContentType, cfg Config) (*types.Checkpoint, error) {
	if cfg.Resume {
		existing, err := o.store.GetLatestIncompleteCheckpoint(ctx, ct)
		if err != nil {
			return nil, &lverrors.StorageError{Op: "get_latest_checkpoint", Err: err}
		}
		if existing != nil {
			return existing, nil
		}
	}

	cp := &types.Checkpoint{
		SessionID:   &sessionID,
		ContentType: ct,
		StartedAt:   time.Now(),
	}
	id, err := o.store.PutCheckpoint(ctx, cp)
	if err != nil {
		return nil, &lverrors.StorageError{Op: "put_checkpoint", Err: err}
	}
	cp.ID = id
	return cp, nil
}
