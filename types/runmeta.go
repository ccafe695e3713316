package types

import "time"

// RunMeta is ambient identity/timestamp context threaded through loggers
// and metrics dimensions for one extraction or restoration run.
type RunMeta struct {
	SessionID string
	Kind      SessionKind
	StartedAt time.Time
}
