// Package types defines the core domain model shared by the store,
// extraction, and restoration packages.
package types

import "fmt"

// ContentType is a closed enum of Looker artifact categories. The integer
// codes are part of the on-disk format and MUST NOT change.
type ContentType int

const (
	ContentTypeDashboard      ContentType = 1
	ContentTypeLook           ContentType = 2
	ContentTypeLookMLModel    ContentType = 3
	ContentTypeExplore        ContentType = 4
	ContentTypeFolder         ContentType = 5
	ContentTypeBoard          ContentType = 6
	ContentTypeUser           ContentType = 7
	ContentTypeGroup          ContentType = 8
	ContentTypeRole           ContentType = 9
	ContentTypePermissionSet  ContentType = 10
	ContentTypeModelSet       ContentType = 11
	ContentTypeScheduledPlan  ContentType = 12
)

// AllContentTypes lists every content type in a stable order, used as the
// default scope for extraction and as the fallback restoration order before
// dependency-graph sorting.
var AllContentTypes = []ContentType{
	ContentTypeDashboard,
	ContentTypeLook,
	ContentTypeLookMLModel,
	ContentTypeExplore,
	ContentTypeFolder,
	ContentTypeBoard,
	ContentTypeUser,
	ContentTypeGroup,
	ContentTypeRole,
	ContentTypePermissionSet,
	ContentTypeModelSet,
	ContentTypeScheduledPlan,
}

var typeNames = map[ContentType]string{
	ContentTypeDashboard:     "dashboard",
	ContentTypeLook:          "look",
	ContentTypeLookMLModel:   "lookml_model",
	ContentTypeExplore:       "explore",
	ContentTypeFolder:        "folder",
	ContentTypeBoard:         "board",
	ContentTypeUser:          "user",
	ContentTypeGroup:         "group",
	ContentTypeRole:          "role",
	ContentTypePermissionSet: "permission_set",
	ContentTypeModelSet:      "model_set",
	ContentTypeScheduledPlan: "scheduled_plan",
}

var namesToType = func() map[string]ContentType {
	m := make(map[string]ContentType, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

// String returns the wire/on-disk name for the content type, e.g. "dashboard".
func (t ContentType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Valid reports whether t is one of the twelve defined content types.
func (t ContentType) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseContentType resolves a wire name (e.g. "dashboard") to its ContentType.
func ParseContentType(name string) (ContentType, error) {
	t, ok := namesToType[name]
	if !ok {
		return 0, fmt.Errorf("types: unknown content type %q", name)
	}
	return t, nil
}

// SupportsServerFolderFilter reports whether the Looker API accepts a
// folder_id parameter for this content type's list endpoint. Per §4.4,
// only dashboards and looks support server-side folder filtering; other
// types must be filtered client-side (or extracted in full).
func (t ContentType) SupportsServerFolderFilter() bool {
	return t == ContentTypeDashboard || t == ContentTypeLook
}
