package types

import "time"

// SessionStatus is the lifecycle state of an extraction or restoration run.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// SessionKind distinguishes extraction sessions from restoration sessions.
// Both share the same storage shape (spec §3) but are recorded with a kind
// tag. Checkpoints carry no kind: Store.GetLatestIncompleteCheckpoint
// selects by content type only, not by session or kind.
type SessionKind string

const (
	SessionKindExtraction  SessionKind = "extraction"
	SessionKindRestoration SessionKind = "restoration"
)

// Session is the outer audit record for one extraction or restoration run.
type Session struct {
	ID          string
	Kind        SessionKind
	Status      SessionStatus
	StartedAt   time.Time
	CompletedAt *time.Time

	ItemsProcessed int64
	ErrorCount     int64

	Config   map[string]any
	Metadata map[string]any
}

// Validate enforces the spec §3 invariant: status=completed ⇒ completed_at != nil.
func (s *Session) Validate() error {
	if s.Status == SessionCompleted && s.CompletedAt == nil {
		return errSessionCompletedWithoutTimestamp
	}
	return nil
}

var errSessionCompletedWithoutTimestamp = sessionError("session marked completed without completed_at")

type sessionError string

func (e sessionError) Error() string { return string(e) }
