package types

import "time"

// IDMapping is a cross-instance translation row: (content_type, source_id)
// → destination_id, scoped to a destination instance URL.
type IDMapping struct {
	ContentType          ContentType
	SourceID             string
	DestinationID        string
	SourceInstanceURL    string
	DestinationInstanceURL string
	CreatedAt            time.Time
}

// Key returns the tuple the store's unique index is keyed on: per spec §3,
// (content_type, source_id, destination_url) is unique.
func (m IDMapping) Key() (ContentType, string, string) {
	return m.ContentType, m.SourceID, m.DestinationInstanceURL
}
