// Package idmapper translates cross-instance foreign-key references
// inside a restored payload (folder_id, user_id, role_ids[], group_ids[],
// query_id in dashboard elements) using mappings recorded during
// restoration (spec §4.10).
package idmapper

import (
	"context"

	"github.com/lookervault/lookervault/codec"
	"github.com/lookervault/lookervault/types"
)

// Store is the subset of store.Store the mapper depends on.
type Store interface {
	GetDestinationID(ctx context.Context, contentType types.ContentType, sourceID, destinationInstanceURL string) (string, bool, error)
	PutIDMapping(ctx context.Context, m *types.IDMapping) error
}

// Mapper resolves and records (content_type, source_id) -> destination_id
// translations scoped to one (source instance, destination instance)
// pair.
type Mapper struct {
	store                  Store
	sourceInstanceURL      string
	destinationInstanceURL string
}

// New builds a Mapper. When sourceInstanceURL == destinationInstanceURL,
// TranslatePayload becomes a no-op per spec §4.10.
func New(store Store, sourceInstanceURL, destinationInstanceURL string) *Mapper {
	return &Mapper{
		store:                  store,
		sourceInstanceURL:      sourceInstanceURL,
		destinationInstanceURL: destinationInstanceURL,
	}
}

// sameInstance reports whether translation would be a no-op.
func (m *Mapper) sameInstance() bool {
	return m.sourceInstanceURL == m.destinationInstanceURL
}

// Resolve looks up the destination ID previously mapped for
// (contentType, sourceID). ok is false if no mapping has been recorded.
func (m *Mapper) Resolve(ctx context.Context, contentType types.ContentType, sourceID string) (string, bool, error) {
	if m.sameInstance() {
		return sourceID, true, nil
	}
	return m.store.GetDestinationID(ctx, contentType, sourceID, m.destinationInstanceURL)
}

// RecordMapping persists a new source -> destination translation,
// typically called right after LookerClient.Create assigns a destination
// ID.
func (m *Mapper) RecordMapping(ctx context.Context, contentType types.ContentType, sourceID, destinationID string) error {
	return m.store.PutIDMapping(ctx, &types.IDMapping{
		ContentType:            contentType,
		SourceID:               sourceID,
		DestinationID:          destinationID,
		SourceInstanceURL:      m.sourceInstanceURL,
		DestinationInstanceURL: m.destinationInstanceURL,
	})
}

// UnmappedRef records a foreign-key field that could not be translated
// because no mapping exists yet for its referenced ID. Callers surface
// these as validation errors downstream rather than failing the whole
// translation outright.
type UnmappedRef struct {
	Field string
	Value string
}

// scalarFKFields maps a top-level scalar foreign-key field name to the
// ContentType it references.
var scalarFKFields = map[string]types.ContentType{
	"folder_id": types.ContentTypeFolder,
	"user_id":   types.ContentTypeUser,
}

// arrayFKFields maps a top-level array-of-ID foreign-key field name to
// the ContentType each element references.
var arrayFKFields = map[string]types.ContentType{
	"role_ids":  types.ContentTypeRole,
	"group_ids": types.ContentTypeGroup,
}

// queryContentType scopes id_mappings rows recorded for dashboard element
// query_id dedup (see translateDashboardElements). It is deliberately not
// one of the twelve values in types.ContentType's closed enum — Query is
// not a tracked content type (spec §4.9 treats intra-dashboard element
// queries as payload-embedded, not a separate restorable entity) — so this
// value only ever appears as an id_mappings key, never as a ContentType
// passed to the store's content tables.
const queryContentType = types.ContentType(-1)

// TranslatePayload rewrites every recognized foreign-key field in payload
// using recorded mappings. Unmappable references (no mapping recorded
// yet) are left unchanged and returned in the UnmappedRef list rather
// than failing the call. query_id inside dashboard_elements is handled
// separately via the dedup scheme in translateDashboardElements and never
// appears in the returned UnmappedRef list.
func (m *Mapper) TranslatePayload(ctx context.Context, payload codec.Value, contentType types.ContentType) (codec.Value, []UnmappedRef, error) {
	if m.sameInstance() || payload.Kind != codec.KindMap {
		return payload, nil, nil
	}

	out := codec.NewOrderedMap()
	var unmapped []UnmappedRef

	for _, key := range payload.Map.Keys() {
		val, _ := payload.Map.Get(key)

		if target, ok := scalarFKFields[key]; ok && val.Kind == codec.KindString {
			translated, ref, err := m.translateScalar(ctx, target, key, val.Str)
			if err != nil {
				return codec.Value{}, nil, err
			}
			if ref != nil {
				unmapped = append(unmapped, *ref)
			}
			out.Set(key, codec.String(translated))
			continue
		}

		if target, ok := arrayFKFields[key]; ok && val.Kind == codec.KindArray {
			translatedArr, refs, err := m.translateArray(ctx, target, key, val.Array)
			if err != nil {
				return codec.Value{}, nil, err
			}
			unmapped = append(unmapped, refs...)
			out.Set(key, codec.Array(translatedArr))
			continue
		}

		if key == "dashboard_elements" && val.Kind == codec.KindArray {
			translatedElements, err := m.translateDashboardElements(ctx, val.Array)
			if err != nil {
				return codec.Value{}, nil, err
			}
			out.Set(key, codec.Array(translatedElements))
			continue
		}

		out.Set(key, val)
	}

	return codec.Map(out), unmapped, nil
}

func (m *Mapper) translateScalar(ctx context.Context, target types.ContentType, field, sourceID string) (string, *UnmappedRef, error) {
	destID, ok, err := m.store.GetDestinationID(ctx, target, sourceID, m.destinationInstanceURL)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return sourceID, &UnmappedRef{Field: field, Value: sourceID}, nil
	}
	return destID, nil, nil
}

func (m *Mapper) translateArray(ctx context.Context, target types.ContentType, field string, values []codec.Value) ([]codec.Value, []UnmappedRef, error) {
	out := make([]codec.Value, len(values))
	var unmapped []UnmappedRef

	for i, v := range values {
		if v.Kind != codec.KindString {
			out[i] = v
			continue
		}
		destID, ref, err := m.translateScalar(ctx, target, field, v.Str)
		if err != nil {
			return nil, nil, err
		}
		if ref != nil {
			unmapped = append(unmapped, *ref)
		}
		out[i] = codec.String(destID)
	}
	return out, unmapped, nil
}

// translateDashboardElements applies the query_id dedup scheme: the first
// element referencing a given source query_id defines that id as
// canonical (queries are never restored as separate entities, so there is
// no real destination id to translate to — the destination API derives
// one from the embedded query body when the element is created) and
// records it under queryContentType; every later element referencing the
// same source query_id, in this payload or a future restore of it,
// resolves through that recorded mapping instead of being reported
// unmapped.
func (m *Mapper) translateDashboardElements(ctx context.Context, elements []codec.Value) ([]codec.Value, error) {
	out := make([]codec.Value, len(elements))

	for i, elem := range elements {
		out[i] = elem
		if elem.Kind != codec.KindMap {
			continue
		}
		queryID, ok := elem.Map.Get("query_id")
		if !ok || queryID.Kind != codec.KindString || queryID.Str == "" {
			continue
		}

		canonical, found, err := m.store.GetDestinationID(ctx, queryContentType, queryID.Str, m.destinationInstanceURL)
		if err != nil {
			return nil, err
		}
		if !found {
			canonical = queryID.Str
			if err := m.store.PutIDMapping(ctx, &types.IDMapping{
				ContentType:            queryContentType,
				SourceID:               queryID.Str,
				DestinationID:          canonical,
				SourceInstanceURL:      m.sourceInstanceURL,
				DestinationInstanceURL: m.destinationInstanceURL,
			}); err != nil {
				return nil, err
			}
		}

		rewritten := codec.NewOrderedMap()
		for _, k := range elem.Map.Keys() {
			v, _ := elem.Map.Get(k)
			if k == "query_id" {
				v = codec.String(canonical)
			}
			rewritten.Set(k, v)
		}
		out[i] = codec.Map(rewritten)
	}
	return out, nil
}
