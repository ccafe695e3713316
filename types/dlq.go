package types

import "time"

// DLQEntry is a durable record of a failed restoration item, carrying the
// original blob so a fixed-up retry does not need to re-fetch it.
type DLQEntry struct {
	ID          int64
	SessionID   string
	ContentType ContentType
	ContentID   string
	ContentData []byte

	ErrorType    string
	ErrorMessage string
	RetryCount   int
	FailedAt     time.Time
}

// DLQFilter narrows Store.DLQList results.
type DLQFilter struct {
	SessionID   string
	ContentType *ContentType
	ErrorType   string
	Limit       int
	Offset      int
}
