package restoration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lookervault/lookervault/codec"
	"github.com/lookervault/lookervault/idmapper"
	"github.com/lookervault/lookervault/lookerclient"
	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/ratelimiter"
	"github.com/lookervault/lookervault/store"
	"github.com/lookervault/lookervault/types"
)

const (
	srcURL = "https://source.looker.com"
	dstURL = "https://dest.looker.com"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *lookerclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return lookerclient.New(lookerclient.Config{
		BaseURL:     srv.URL,
		Token:       "test-token",
		RateLimiter: ratelimiter.New(ratelimiter.Config{PerMinute: 10000, PerSecond: 10000}),
	})
}

func buildItem(t *testing.T, id string, fields map[string]codec.Value) *types.ContentItem {
	t.Helper()
	m := codec.NewOrderedMap()
	m.Set("id", codec.String(id))
	for k, v := range fields {
		m.Set(k, v)
	}
	blob, err := codec.Encode(codec.Map(m))
	if err != nil {
		t.Fatalf("codec.Encode: %v", err)
	}
	return &types.ContentItem{
		ID:          types.BuildContentID(types.ContentTypeDashboard, id),
		ContentType: types.ContentTypeDashboard,
		ContentData: blob,
		ContentSize: len(blob),
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRestoreCreatesWhenUnmapped(t *testing.T) {
	st := openTestStore(t)
	var gotMethod string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Write([]byte(`{"id":"101"}`))
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	item := buildItem(t, "5", map[string]codec.Value{"title": codec.String("Revenue")})

	res, err := r.Restore(context.Background(), item, false)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Operation != OperationCreate || res.DestinationID != "101" {
		t.Fatalf("expected create -> 101, got %+v", res)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}

	destID, ok, err := st.GetDestinationID(context.Background(), types.ContentTypeDashboard, "5", dstURL)
	if err != nil {
		t.Fatalf("GetDestinationID: %v", err)
	}
	if !ok || destID != "101" {
		t.Fatalf("expected recorded mapping 5->101, got %q ok=%v", destID, ok)
	}
}

func TestRestoreUpdatesWhenMappedAndDestinationExists(t *testing.T) {
	st := openTestStore(t)
	if err := st.PutIDMapping(context.Background(), &types.IDMapping{
		ContentType: types.ContentTypeDashboard, SourceID: "5", DestinationID: "101",
		SourceInstanceURL: srcURL, DestinationInstanceURL: dstURL,
	}); err != nil {
		t.Fatalf("PutIDMapping: %v", err)
	}

	var gotMethod string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Write([]byte(`{"id":"101"}`))
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	item := buildItem(t, "5", map[string]codec.Value{"title": codec.String("Revenue v2")})
	res, err := r.Restore(context.Background(), item, false)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Operation != OperationUpdate || res.DestinationID != "101" {
		t.Fatalf("expected update -> 101, got %+v", res)
	}
	if gotMethod != http.MethodPatch {
		t.Fatalf("expected PATCH, got %s", gotMethod)
	}
}

func TestRestoreFallsBackToCreateWhenMappedDestinationMissing(t *testing.T) {
	st := openTestStore(t)
	if err := st.PutIDMapping(context.Background(), &types.IDMapping{
		ContentType: types.ContentTypeDashboard, SourceID: "5", DestinationID: "101",
		SourceInstanceURL: srcURL, DestinationInstanceURL: dstURL,
	}); err != nil {
		t.Fatalf("PutIDMapping: %v", err)
	}

	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method)
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"id":"202"}`))
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	item := buildItem(t, "5", nil)
	res, err := r.Restore(context.Background(), item, false)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Operation != OperationCreate || res.DestinationID != "202" {
		t.Fatalf("expected fallback create -> 202, got %+v", res)
	}
}

func TestRestoreDryRunIssuesNoMutatingCall(t *testing.T) {
	st := openTestStore(t)
	var mutated bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			mutated = true
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	item := buildItem(t, "5", nil)
	res, err := r.Restore(context.Background(), item, true)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if mutated {
		t.Fatal("dry run must not issue a create/update request")
	}
	if res.Operation != OperationCreate {
		t.Fatalf("expected dry-run create outcome, got %+v", res)
	}
}

func TestRestoreSurfacesUnmappedForeignKey(t *testing.T) {
	st := openTestStore(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"101"}`))
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	item := buildItem(t, "5", map[string]codec.Value{"folder_id": codec.String("f1")})
	_, err := r.Restore(context.Background(), item, false)
	if err == nil {
		t.Fatal("expected an id mapping error for unmapped folder_id")
	}
	idErr, ok := err.(*lverrors.IDMappingError)
	if !ok {
		t.Fatalf("expected *lverrors.IDMappingError, got %T: %v", err, err)
	}
	if idErr.Field != "folder_id" || idErr.Value != "f1" {
		t.Fatalf("unexpected id mapping error fields: %+v", idErr)
	}
}

func TestShouldSkipFalseWhenUnmapped(t *testing.T) {
	st := openTestStore(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no HTTP call expected when item is unmapped")
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	item := buildItem(t, "5", nil)
	skip, err := r.ShouldSkip(context.Background(), item)
	if err != nil {
		t.Fatalf("ShouldSkip: %v", err)
	}
	if skip {
		t.Fatal("expected no skip for an unmapped item")
	}
}

func TestShouldSkipTrueWhenDestinationNewer(t *testing.T) {
	st := openTestStore(t)
	if err := st.PutIDMapping(context.Background(), &types.IDMapping{
		ContentType: types.ContentTypeDashboard, SourceID: "5", DestinationID: "101",
		SourceInstanceURL: srcURL, DestinationInstanceURL: dstURL,
	}); err != nil {
		t.Fatalf("PutIDMapping: %v", err)
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"101","updated_at":"2026-02-01T00:00:00Z"}`))
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	item := buildItem(t, "5", nil) // UpdatedAt = 2026-01-01
	skip, err := r.ShouldSkip(context.Background(), item)
	if err != nil {
		t.Fatalf("ShouldSkip: %v", err)
	}
	if !skip {
		t.Fatal("expected skip when destination is newer than the stored copy")
	}
}

func TestShouldSkipFalseWhenDestinationUnreachable(t *testing.T) {
	st := openTestStore(t)
	if err := st.PutIDMapping(context.Background(), &types.IDMapping{
		ContentType: types.ContentTypeDashboard, SourceID: "5", DestinationID: "101",
		SourceInstanceURL: srcURL, DestinationInstanceURL: dstURL,
	}); err != nil {
		t.Fatalf("PutIDMapping: %v", err)
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	item := buildItem(t, "5", nil)
	skip, err := r.ShouldSkip(context.Background(), item)
	if err != nil {
		t.Fatalf("ShouldSkip: %v", err)
	}
	if skip {
		t.Fatal("expected no skip when destination item can't be fetched")
	}
}

func TestRestoreDashboardWithRepeatedQueryIDSucceeds(t *testing.T) {
	st := openTestStore(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"101"}`))
	})
	mapper := idmapper.New(st, srcURL, dstURL)
	r := New(client, mapper)

	elemA := codec.NewOrderedMap()
	elemA.Set("query_id", codec.String("77"))
	elemB := codec.NewOrderedMap()
	elemB.Set("query_id", codec.String("77"))

	item := buildItem(t, "5", map[string]codec.Value{
		"dashboard_elements": codec.Array([]codec.Value{codec.Map(elemA), codec.Map(elemB)}),
	})

	res, err := r.Restore(context.Background(), item, false)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Operation != OperationCreate || res.DestinationID != "101" {
		t.Fatalf("expected create -> 101, got %+v", res)
	}
}
