// Package restoration implements the per-item Restorer and the
// RestorationOrchestrator that drives a full restore run (spec §4.11,
// §4.12). Its shape mirrors the extraction package's orchestrator —
// checkpointed, dependency-ordered, worker-pool driven — but reads from
// the content store instead of the network and writes to LookerClient
// instead of the store.
package restoration

import (
	"context"
	"time"

	"github.com/lookervault/lookervault/codec"
	"github.com/lookervault/lookervault/idmapper"
	"github.com/lookervault/lookervault/lookerclient"
	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/types"
)

// Operation is the action Restore took against the destination.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// Result is the outcome of one item's restoration (spec §4.11 step 6).
type Result struct {
	Operation     Operation
	DestinationID string
	Duration      time.Duration
}

// Restorer performs the per-item restore flow: decode, translate
// foreign keys, exists-check, create-or-update, record mapping on
// create.
type Restorer struct {
	client *lookerclient.Client
	mapper *idmapper.Mapper
}

// New builds a Restorer.
func New(client *lookerclient.Client, mapper *idmapper.Mapper) *Restorer {
	return &Restorer{client: client, mapper: mapper}
}

// Restore runs the per-item flow for item. When dryRun is true, no
// create/update call is issued, but decode, translation, and the
// exists-check still run so validation/mapping errors still surface.
func (r *Restorer) Restore(ctx context.Context, item *types.ContentItem, dryRun bool) (Result, error) {
	start := time.Now()

	payload, err := codec.Decode(item.ContentData)
	if err != nil {
		return Result{}, &lverrors.DeserializationError{Err: err}
	}

	translated, unmapped, err := r.mapper.TranslatePayload(ctx, payload, item.ContentType)
	if err != nil {
		return Result{}, err
	}
	if len(unmapped) > 0 {
		return Result{}, &lverrors.IDMappingError{Field: unmapped[0].Field, Value: unmapped[0].Value}
	}

	_, lookerID, err := types.ParseContentID(item.ID)
	if err != nil {
		return Result{}, &lverrors.ValidationError{Field: "id", Err: err}
	}

	destID, mapped, err := r.mapper.Resolve(ctx, item.ContentType, lookerID)
	if err != nil {
		return Result{}, err
	}

	if mapped {
		exists, err := r.client.Exists(ctx, item.ContentType, destID)
		if err != nil {
			return Result{}, err
		}
		if exists {
			if !dryRun {
				if err := r.client.Update(ctx, item.ContentType, destID, translated); err != nil {
					return Result{}, err
				}
			}
			return Result{Operation: OperationUpdate, DestinationID: destID, Duration: time.Since(start)}, nil
		}
	}

	if dryRun {
		return Result{Operation: OperationCreate, DestinationID: destID, Duration: time.Since(start)}, nil
	}

	newID, err := r.client.Create(ctx, item.ContentType, translated)
	if err != nil {
		return Result{}, err
	}
	if err := r.mapper.RecordMapping(ctx, item.ContentType, lookerID, newID); err != nil {
		return Result{}, &lverrors.StorageError{Op: "record_mapping", Err: err}
	}

	return Result{Operation: OperationCreate, DestinationID: newID, Duration: time.Since(start)}, nil
}

// ShouldSkip implements skip_if_modified: when the item is already
// mapped and exists at the destination with a newer updated_at than the
// stored copy, the orchestrator skips restoring it.
func (r *Restorer) ShouldSkip(ctx context.Context, item *types.ContentItem) (bool, error) {
	_, lookerID, err := types.ParseContentID(item.ID)
	if err != nil {
		return false, &lverrors.ValidationError{Field: "id", Err: err}
	}

	destID, mapped, err := r.mapper.Resolve(ctx, item.ContentType, lookerID)
	if err != nil {
		return false, err
	}
	if !mapped {
		return false, nil
	}

	dest, err := r.client.Get(ctx, item.ContentType, destID)
	if err != nil {
		return false, nil // destination item missing or unreachable: do not skip, let Restore handle it
	}
	if dest.Kind != codec.KindMap {
		return false, nil
	}
	updatedAtVal, ok := dest.Map.Get("updated_at")
	if !ok || updatedAtVal.Kind != codec.KindString {
		return false, nil
	}
	destUpdatedAt, err := time.Parse(time.RFC3339, updatedAtVal.Str)
	if err != nil {
		return false, nil
	}

	return destUpdatedAt.After(item.UpdatedAt), nil
}
