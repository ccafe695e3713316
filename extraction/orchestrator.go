// Package extraction implements the Parallel Extraction Engine (spec
// §4.8): drives fetch -> encode -> store for a set of ContentTypes using
// the offset coordinators, work queue, rate-limited Looker client, and
// metrics collector built in their own packages. Its producer/consumer
// worker-pool shape is grounded on the teacher's runtime.Operator
// (runtime/fanout.go) generalized from "single child-run dispatch" to
// "claim an offset range, fetch a page, hand it to a worker pool via
// WorkQueue" and, for the worker-pool lifecycle itself, on the
// errgroup.WithContext pattern the retrieval pack's own backup/restore
// tooling uses for region/table-level parallel workers.
package extraction

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lookervault/lookervault/codec"
	"github.com/lookervault/lookervault/coordinator"
	"github.com/lookervault/lookervault/log"
	"github.com/lookervault/lookervault/lookerclient"
	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/metrics"
	"github.com/lookervault/lookervault/store"
	"github.com/lookervault/lookervault/types"
	"github.com/lookervault/lookervault/workqueue"
)

// Config parameterizes one extraction run (spec §4.8).
type Config struct {
	Types        []types.ContentType
	Workers      int
	BatchSize    int
	FolderIDs    []string
	UpdatedAfter *time.Time
	Resume       bool
	Fields       []string
}

// Result is the outcome of one extraction run.
type Result struct {
	SessionID          string
	TotalItems         int64
	ItemsByType        map[types.ContentType]int64
	Errors             []metrics.WorkerError
	Duration           time.Duration
	CheckpointsCreated int
}

// Orchestrator drives extraction runs against one Store/Client pair.
type Orchestrator struct {
	store  *store.Store
	client *lookerclient.Client
	logger *log.Logger
}

// New builds an Orchestrator. logger may be nil, in which case the
// orchestrator runs silently.
func New(st *store.Store, client *lookerclient.Client, logger *log.Logger) *Orchestrator {
	return &Orchestrator{store: st, client: client, logger: logger}
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

// Run executes one extraction according to cfg, iterating every requested
// ContentType sequentially (parallelism happens within a type, across its
// offset ranges, not across types — each type's checkpoint completion is
// an independent unit of resumability).
func (o *Orchestrator) Run(ctx context.Context, sessionID string, cfg Config) (Result, error) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	collector := metrics.NewCollector()
	checkpointsCreated := 0

	// Repeated folder ids are dropped here, so no coordinator sees the same
	// folder twice.
	if len(cfg.FolderIDs) > 1 {
		seenFolders := make(map[string]bool, len(cfg.FolderIDs))
		folderIDs := make([]string, 0, len(cfg.FolderIDs))
		for _, id := range cfg.FolderIDs {
			if !seenFolders[id] {
				seenFolders[id] = true
				folderIDs = append(folderIDs, id)
			}
		}
		cfg.FolderIDs = folderIDs
	}

	sess := &types.Session{
		ID:        sessionID,
		Kind:      types.SessionKindExtraction,
		Status:    types.SessionRunning,
		StartedAt: time.Now(),
	}
	if err := o.store.PutSession(ctx, sess); err != nil {
		return Result{}, &lverrors.StorageError{Op: "put_session", Err: err}
	}
	o.logInfo("extraction run started", zap.Int("content_types", len(cfg.Types)), zap.Int("workers", workers))

	for _, ct := range cfg.Types {
		if err := ctx.Err(); err != nil {
			sess.Status = types.SessionCancelled
			_ = o.store.UpdateSession(context.WithoutCancel(ctx), sess)
			return o.finalize(sessionID, collector, checkpointsCreated), lverrors.Cancelled
		}

		created, err := o.runType(ctx, sessionID, ct, cfg, workers, collector)
		if created {
			checkpointsCreated++
		}
		if err != nil {
			if err == lverrors.Cancelled {
				sess.Status = types.SessionCancelled
				_ = o.store.UpdateSession(context.WithoutCancel(ctx), sess)
				return o.finalize(sessionID, collector, checkpointsCreated), err
			}
			sess.Status = types.SessionFailed
			_ = o.store.UpdateSession(ctx, sess)
			return o.finalize(sessionID, collector, checkpointsCreated), err
		}
	}

	now := time.Now()
	sess.Status = types.SessionCompleted
	sess.CompletedAt = &now
	snap := collector.Snapshot()
	sess.ItemsProcessed = snap.ItemsProcessed
	sess.ErrorCount = snap.ErrorCount
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return Result{}, &lverrors.StorageError{Op: "update_session", Err: err}
	}

	return o.finalize(sessionID, collector, checkpointsCreated), nil
}

func (o *Orchestrator) finalize(sessionID string, collector *metrics.Collector, checkpointsCreated int) Result {
	snap := collector.Snapshot()
	return Result{
		SessionID:          sessionID,
		TotalItems:         snap.ItemsProcessed,
		ItemsByType:        snap.TotalByType,
		Errors:             snap.WorkerErrors,
		Duration:           time.Since(snap.StartTime),
		CheckpointsCreated: checkpointsCreated,
	}
}

// runType drives one ContentType's extraction: checkpoint resume/create,
// coordinator selection, producer/consumer launch, checkpoint completion.
func (o *Orchestrator) runType(ctx context.Context, sessionID string, ct types.ContentType, cfg Config, workers int, collector *metrics.Collector) (checkpointCreated bool, err error) {
	cp, created, err := o.loadOrCreateCheckpoint(ctx, sessionID, ct, cfg)
	if err != nil {
		return false, err
	}

	multiFolder := ct.SupportsServerFolderFilter() && len(cfg.FolderIDs) > 1

	queue := workqueue.New(workers, workqueue.DefaultCapacityPerWorker)

	var single *coordinator.OffsetCoordinator
	var multi *coordinator.MultiFolderOffsetCoordinator
	stride := int64(cfg.BatchSize)
	if stride <= 0 {
		stride = 100
	}

	if multiFolder {
		multi = coordinator.NewMultiFolder(cfg.FolderIDs, stride)
		multi.SeekFolderOffsets(cp.State.FolderOffsets)
		multi.SetTotalWorkers(workers)
	} else {
		single = coordinator.New(stride)
		single.SeekOffset(cp.State.LastOffset)
		single.SetTotalWorkers(workers)
	}

	group, gctx := errgroup.WithContext(ctx)

	folderID := ""
	if len(cfg.FolderIDs) == 1 {
		folderID = cfg.FolderIDs[0]
	}
	if len(cfg.FolderIDs) > 0 && !ct.SupportsServerFolderFilter() {
		o.logWarn("content type has no server-side folder filter", zap.String("content_type", ct.String()), zap.Strings("folder_ids", cfg.FolderIDs))
	}

	group.Go(func() error {
		defer queue.Close()
		if multiFolder {
			return o.produceMultiFolder(gctx, ct, cfg, multi, queue)
		}
		return o.produceSingle(gctx, ct, cfg, folderID, single, queue)
	})

	seenIDs := newIDSetCollector()
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			return o.consume(gctx, ct, queue, collector, seenIDs)
		})
	}

	runErr := group.Wait()

	if multiFolder {
		cp.State.FolderOffsets = multi.FolderOffsets()
	} else {
		cp.State.LastOffset = single.CurrentOffset()
	}

	cp.ItemCount = collector.Snapshot().TotalByType[ct]
	if runErr != nil {
		// Cancellation leaves the checkpoint IN_PROGRESS (no error_message,
		// no completed_at) with an up-to-date item_count, per spec §5, so
		// a later resume is valid; that write uses a context detached from
		// the cancelled one so it still reaches the store. Any other failure
		// is recorded as FAILED.
		writeCtx := ctx
		if ctx.Err() != nil {
			runErr = lverrors.Cancelled
			writeCtx = context.WithoutCancel(ctx)
		} else if runErr != lverrors.Cancelled {
			msg := runErr.Error()
			cp.ErrorMessage = &msg
		}
		if _, putErr := o.store.PutCheckpoint(writeCtx, cp); putErr != nil {
			return created, &lverrors.StorageError{Op: "put_checkpoint", Err: putErr}
		}
		return created, runErr
	}

	if cfg.UpdatedAfter != nil {
		if err := o.reconcileDeletions(ctx, ct, seenIDs.ids()); err != nil {
			return created, err
		}
	}

	now := time.Now()
	cp.CompletedAt = &now
	if _, err := o.store.PutCheckpoint(ctx, cp); err != nil {
		return created, &lverrors.StorageError{Op: "put_checkpoint", Err: err}
	}
	o.logInfo("content type extraction completed", zap.String("content_type", ct.String()), zap.Int64("items", cp.ItemCount))

	return created, nil
}

func (o *Orchestrator) loadOrCreateCheckpoint(ctx context.Context, sessionID string, ct types.ContentType, cfg Config) (*types.Checkpoint, bool, error) {
	if cfg.Resume {
		existing, err := o.store.GetLatestIncompleteCheckpoint(ctx, ct)
		if err != nil {
			return nil, false, &lverrors.StorageError{Op: "get_latest_checkpoint", Err: err}
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	cp := &types.Checkpoint{
		SessionID:   &sessionID,
		ContentType: ct,
		State: types.CheckpointState{
			BatchSize: cfg.BatchSize,
			Fields:    cfg.Fields,
			FolderIDs: cfg.FolderIDs,
		},
		StartedAt: time.Now(),
	}
	id, err := o.store.PutCheckpoint(ctx, cp)
	if err != nil {
		return nil, false, &lverrors.StorageError{Op: "put_checkpoint", Err: err}
	}
	cp.ID = id
	return cp, true, nil
}

func (o *Orchestrator) produceSingle(ctx context.Context, ct types.ContentType, cfg Config, folderID string, coord *coordinator.OffsetCoordinator, queue *workqueue.Queue) error {
	batchNumber := 0
	for {
		if err := ctx.Err(); err != nil {
			return lverrors.Cancelled
		}
		offset, limit, ok := coord.ClaimRange()
		if !ok {
			return nil
		}

		items, err := o.fetchPage(ctx, ct, cfg, folderID, offset, limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			coord.MarkWorkerDone()
			continue
		}

		batchNumber++
		queue.Put(workqueue.WorkItem{ContentType: ct, Items: items, BatchNumber: batchNumber})
	}
}

func (o *Orchestrator) produceMultiFolder(ctx context.Context, ct types.ContentType, cfg Config, coord *coordinator.MultiFolderOffsetCoordinator, queue *workqueue.Queue) error {
	batchNumber := 0
	for {
		if err := ctx.Err(); err != nil {
			return lverrors.Cancelled
		}
		claim, ok := coord.ClaimRange()
		if !ok {
			return nil
		}

		items, err := o.fetchPage(ctx, ct, cfg, claim.FolderID, claim.Offset, claim.Limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			coord.MarkWorkerDone(claim.FolderID)
			continue
		}

		batchNumber++
		queue.Put(workqueue.WorkItem{ContentType: ct, Items: items, BatchNumber: batchNumber})
	}
}

// fetchPage drains exactly one page's worth (limit items, or fewer at
// end of data) starting at offset, using the Iterator so client-side
// folder filtering (for types without server support) is applied
// consistently with lookerclient's own listing logic.
func (o *Orchestrator) fetchPage(ctx context.Context, ct types.ContentType, cfg Config, folderID string, offset, limit int64) ([]codec.Value, error) {
	it := o.client.Iterate(ct, lookerclient.IterateOptions{
		Fields:       cfg.Fields,
		BatchSize:    int(limit),
		UpdatedAfter: cfg.UpdatedAfter,
		FolderID:     folderID,
		Offset:       offset,
	})

	var items []codec.Value
	for int64(len(items)) < limit {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if folderID != "" && !ct.SupportsServerFolderFilter() {
			if !itemBelongsToFolder(v, folderID) {
				continue
			}
		}
		items = append(items, v)
	}
	return items, nil
}

func itemBelongsToFolder(v codec.Value, folderID string) bool {
	if v.Kind != codec.KindMap {
		return false
	}
	fv, ok := v.Map.Get("folder_id")
	if !ok {
		return false
	}
	return valueToString(fv) == folderID
}

func valueToString(v codec.Value) string {
	switch v.Kind {
	case codec.KindString:
		return v.Str
	case codec.KindInt:
		return fmt.Sprintf("%d", v.Int)
	default:
		return ""
	}
}

// consume claims WorkItems until the queue closes and drains, encoding
// and storing each item.
func (o *Orchestrator) consume(ctx context.Context, ct types.ContentType, queue *workqueue.Queue, collector *metrics.Collector, seen *idSetCollector) error {
	for {
		item, ok := queue.Get()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return lverrors.Cancelled
		}

		for _, raw := range item.Items {
			contentItem, err := toContentItem(ct, raw)
			if err != nil {
				o.logWarn("failed to encode item", zap.String("content_type", ct.String()), zap.Error(err))
				collector.RecordError(metrics.WorkerError{
					ContentType: ct,
					Message:     err.Error(),
					OccurredAt:  time.Now(),
				})
				continue
			}
			if err := o.store.PutContent(ctx, contentItem); err != nil {
				o.logWarn("failed to store item", zap.String("content_id", contentItem.ID), zap.Error(err))
				collector.RecordError(metrics.WorkerError{
					ContentType: ct,
					ContentID:   contentItem.ID,
					Message:     err.Error(),
					OccurredAt:  time.Now(),
				})
				continue
			}
			seen.add(contentItem.ID)
		}
		collector.RecordBatch(ct, len(item.Items))
	}
}

func toContentItem(ct types.ContentType, raw codec.Value) (*types.ContentItem, error) {
	if raw.Kind != codec.KindMap {
		return nil, fmt.Errorf("extraction: item for %s is not an object", ct)
	}
	idVal, ok := raw.Map.Get("id")
	if !ok {
		return nil, fmt.Errorf("extraction: item for %s has no id field", ct)
	}
	lookerID := valueToString(idVal)
	if lookerID == "" {
		return nil, fmt.Errorf("extraction: item for %s has empty id", ct)
	}

	name := ""
	if nv, ok := raw.Map.Get("title"); ok {
		name = valueToString(nv)
	} else if nv, ok := raw.Map.Get("name"); ok {
		name = valueToString(nv)
	}

	blob, err := codec.Encode(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	createdAt, ok := lookerTimestamp(raw, "created_at")
	if !ok {
		createdAt = now
	}
	updatedAt, ok := lookerTimestamp(raw, "updated_at")
	if !ok {
		updatedAt = createdAt
	}
	return &types.ContentItem{
		ID:          types.BuildContentID(ct, lookerID),
		ContentType: ct,
		Name:        name,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		SyncedAt:    now,
		ContentSize: len(blob),
		ContentData: blob,
	}, nil
}

// lookerTimestamp reads field from a Looker API item and parses it as
// RFC3339, the format the Looker API reports created_at/updated_at in —
// the same format restoration/restorer.go parses the destination's
// updated_at in. Not every content type's list response carries these
// fields (e.g. roles, model sets), so callers fall back when ok is false.
func lookerTimestamp(raw codec.Value, field string) (time.Time, bool) {
	if raw.Kind != codec.KindMap {
		return time.Time{}, false
	}
	v, ok := raw.Map.Get(field)
	if !ok || v.Kind != codec.KindString || v.Str == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v.Str)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// reconcileDeletions soft-deletes every active stored id of ct not present
// in seenIDs, per spec §4.8's incremental-mode diff
// (ids_seen_in_looker - ids_in_store_active).
func (o *Orchestrator) reconcileDeletions(ctx context.Context, ct types.ContentType, seenIDs map[string]struct{}) error {
	stored, err := o.store.ListContent(ctx, store.ListContentOptions{
		ContentType:    ct,
		HasContentType: true,
	})
	if err != nil {
		return &lverrors.StorageError{Op: "list_content", Err: err}
	}

	now := time.Now()
	for _, item := range stored {
		if _, ok := seenIDs[item.ID]; ok {
			continue
		}
		if err := o.store.SoftDelete(ctx, item.ID, now); err != nil {
			return &lverrors.StorageError{Op: "soft_delete", Err: err}
		}
	}
	return nil
}
