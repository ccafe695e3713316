package types

import "time"

// SnapshotMetadata describes one uploaded store snapshot. This is an
// external-interface type only (spec §6) — the core never interprets the
// store file's bytes, it just hands them to the snapshot sink.
type SnapshotMetadata struct {
	Key             string
	Prefix          string
	Timestamp       time.Time
	SizeBytes       int64
	CRC32C          uint32
	ContentEncoding string // "" or "gzip"
}

// Filename renders the spec §6 filename format:
// "{prefix}-YYYY-MM-DDTHH-MM-SS.db[.gz]" (UTC).
func (s SnapshotMetadata) Filename() string {
	ext := ".db"
	if s.ContentEncoding == "gzip" {
		ext += ".gz"
	}
	return s.Prefix + "-" + s.Timestamp.UTC().Format("2006-01-02T15-04-05") + ext
}
