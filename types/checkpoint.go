package types

import "time"

// CheckpointStatus is derived from the presence of CompletedAt/ErrorMessage,
// never stored as its own column (per spec §3: "Presence of completed_at
// with no error_message ⇒ COMPLETED; neither present ⇒ IN_PROGRESS;
// error_message present ⇒ FAILED").
type CheckpointStatus string

const (
	CheckpointInProgress CheckpointStatus = "in_progress"
	CheckpointCompleted  CheckpointStatus = "completed"
	CheckpointFailed     CheckpointStatus = "failed"
)

// CheckpointState is the JSON document stored in Checkpoint.State. Fields
// are a superset covering both extraction and restoration checkpoints;
// unused fields are left at their zero value.
type CheckpointState struct {
	LastOffset     int64          `json:"last_offset"`
	TotalProcessed int64          `json:"total_processed"`
	BatchSize      int            `json:"batch_size"`
	Fields         []string       `json:"fields,omitempty"`
	FolderIDs      []string       `json:"folder_ids,omitempty"`
	FolderOffsets  map[string]int64 `json:"folder_offsets,omitempty"`

	// CompletedIDs is populated only by restoration checkpoints: the set of
	// content ids known durably restored for this content type.
	CompletedIDs []string `json:"completed_ids,omitempty"`
}

// Checkpoint is a resumable progress record for one (session, content type)
// pair.
type Checkpoint struct {
	ID          int64
	SessionID   *string
	ContentType ContentType
	State       CheckpointState

	StartedAt    time.Time
	CompletedAt  *time.Time
	ItemCount    int64
	ErrorMessage *string
}

// Status derives the checkpoint's lifecycle state from CompletedAt/ErrorMessage.
func (c *Checkpoint) Status() CheckpointStatus {
	switch {
	case c.ErrorMessage != nil:
		return CheckpointFailed
	case c.CompletedAt != nil:
		return CheckpointCompleted
	default:
		return CheckpointInProgress
	}
}

// IsIncomplete reports whether CompletedAt is unset, the predicate used by
// Store.GetLatestIncompleteCheckpoint.
func (c *Checkpoint) IsIncomplete() bool {
	return c.CompletedAt == nil
}
