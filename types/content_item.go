package types

import (
	"fmt"
	"strings"
	"time"
)

// ContentItem is one Looker artifact as held by the store. ContentData is
// the codec-encoded original API dict; the store never inspects it.
type ContentItem struct {
	// ID is the composite "{type_name}::{looker_id}" identifier, globally
	// unique across content types.
	ID string

	ContentType ContentType
	Name        string

	OwnerID    *int64
	OwnerEmail *string

	CreatedAt time.Time
	UpdatedAt time.Time
	SyncedAt  time.Time

	// DeletedAt is non-nil when the item has been soft-deleted. The payload
	// is retained until HardDeleteOlderThan purges it.
	DeletedAt *time.Time

	// ContentSize MUST equal len(ContentData); writers set it, and the store
	// saves it as given without checking it.
	ContentSize int
	ContentData []byte
}

// IsDeleted reports whether the item is soft-deleted.
func (c *ContentItem) IsDeleted() bool {
	return c != nil && c.DeletedAt != nil
}

// BuildContentID constructs the canonical "{type_name}::{looker_id}" id.
func BuildContentID(t ContentType, lookerID string) string {
	return fmt.Sprintf("%s::%s", t.String(), lookerID)
}

// ParseContentID splits a composite id back into its ContentType and
// Looker-native id, the inverse of BuildContentID.
func ParseContentID(id string) (ContentType, string, error) {
	typeName, lookerID, ok := strings.Cut(id, "::")
	if !ok {
		return 0, "", fmt.Errorf("types: malformed content id %q", id)
	}
	t, err := ParseContentType(typeName)
	if err != nil {
		return 0, "", err
	}
	return t, lookerID, nil
}
