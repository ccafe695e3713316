package extraction

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/lookervault/lookervault/lookerclient"
	"github.com/lookervault/lookervault/ratelimiter"
	"github.com/lookervault/lookervault/store"
	"github.com/lookervault/lookervault/types"
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

// dashboardServer serves a fixed-size list of dashboards over /dashboards,
// honoring limit/offset like the real Looker API.
func dashboardServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 100
		}
		w.Header().Set("Content-Type", "application/json")
		if offset >= total {
			w.Write([]byte(`[]`))
			return
		}
		end := offset + limit
		if end > total {
			end = total
		}
		w.Write([]byte(buildDashboardPage(offset, end)))
	}))
}

func buildDashboardPage(offset, end int) string {
	out := "["
	for i := offset; i < end; i++ {
		if i > offset {
			out += ","
		}
		out += fmt.Sprintf(`{"id":"%d","title":"Dashboard %d","folder_id":"f1"}`, i, i)
	}
	out += "]"
	return out
}

func newTestOrchestrator(t *testing.T, srv *httptest.Server) (*Orchestrator, *store.Store) {
	t.Helper()
	st := openTestStore(t)
	client := lookerclient.New(lookerclient.Config{
		BaseURL:     srv.URL,
		Token:       "test-token",
		RateLimiter: ratelimiter.New(ratelimiter.Config{PerMinute: 10000, PerSecond: 10000}),
	})
	return New(st, client, nil), st
}

func TestRunExtractsAllItems(t *testing.T) {
	srv := dashboardServer(t, 25)
	defer srv.Close()

	o, st := newTestOrchestrator(t, srv)

	result, err := o.Run(context.Background(), "session-1", Config{
		Types:     []types.ContentType{types.ContentTypeDashboard},
		Workers:   3,
		BatchSize: 10,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TotalItems != 25 {
		t.Fatalf("expected 25 items, got %d", result.TotalItems)
	}

	stored, err := st.ListContent(context.Background(), store.ListContentOptions{
		ContentType: types.ContentTypeDashboard, HasContentType: true,
	})
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(stored) != 25 {
		t.Fatalf("expected 25 stored items, got %d", len(stored))
	}
}

func TestRunMarksSessionCompleted(t *testing.T) {
	srv := dashboardServer(t, 5)
	defer srv.Close()

	o, st := newTestOrchestrator(t, srv)

	_, err := o.Run(context.Background(), "session-2", Config{
		Types:     []types.ContentType{types.ContentTypeDashboard},
		Workers:   1,
		BatchSize: 10,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sess, err := st.GetSession(context.Background(), "session-2")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != types.SessionCompleted {
		t.Fatalf("expected completed status, got %s", sess.Status)
	}
	if sess.CompletedAt == nil {
		t.Fatal("expected CompletedAt set")
	}
}

func TestRunCreatesCheckpointPerType(t *testing.T) {
	srv := dashboardServer(t, 5)
	defer srv.Close()

	o, st := newTestOrchestrator(t, srv)

	result, err := o.Run(context.Background(), "session-3", Config{
		Types:     []types.ContentType{types.ContentTypeDashboard},
		Workers:   1,
		BatchSize: 10,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.CheckpointsCreated != 1 {
		t.Fatalf("expected 1 checkpoint created, got %d", result.CheckpointsCreated)
	}

	cps, err := st.ListCheckpointsForSession(context.Background(), "session-3")
	if err != nil {
		t.Fatalf("ListCheckpointsForSession: %v", err)
	}
	if len(cps) != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", len(cps))
	}
	if cps[0].CompletedAt == nil {
		t.Fatal("expected checkpoint completed")
	}
}

func TestRunResumesFromCheckpointOffset(t *testing.T) {
	srv := dashboardServer(t, 30)
	defer srv.Close()

	o, st := newTestOrchestrator(t, srv)
	ctx := context.Background()
	sessionID := "session-resume"

	cp := &types.Checkpoint{
		SessionID:   &sessionID,
		ContentType: types.ContentTypeDashboard,
		State:       types.CheckpointState{LastOffset: 20, BatchSize: 10},
		StartedAt:   time.Now(),
	}
	if _, err := st.PutCheckpoint(ctx, cp); err != nil {
		t.Fatalf("PutCheckpoint: %v", err)
	}

	result, err := o.Run(ctx, sessionID, Config{
		Types:     []types.ContentType{types.ContentTypeDashboard},
		Workers:   1,
		BatchSize: 10,
		Resume:    true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TotalItems != 10 {
		t.Fatalf("expected only the 10 remaining items to be fetched, got %d", result.TotalItems)
	}

	stored, err := st.ListContent(ctx, store.ListContentOptions{
		ContentType: types.ContentTypeDashboard, HasContentType: true,
	})
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(stored) != 10 {
		t.Fatalf("expected 10 stored items (offsets 20-29), got %d", len(stored))
	}

	cps, err := st.ListCheckpointsForSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListCheckpointsForSession: %v", err)
	}
	if len(cps) != 1 {
		t.Fatalf("expected the resumed run to update the original checkpoint row, not insert a sibling, got %d rows", len(cps))
	}
	if cps[0].CompletedAt == nil {
		t.Fatal("expected the resumed checkpoint marked completed")
	}
	if cps[0].State.LastOffset < 30 {
		t.Fatalf("expected last_offset to have advanced past 30, got %d", cps[0].State.LastOffset)
	}
}

func TestRunIsIdempotentOnUpdatedAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		if offset > 0 {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"id":"1","title":"Revenue","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-06-01T00:00:00Z"}]`))
	}))
	defer srv.Close()

	o, st := newTestOrchestrator(t, srv)
	ctx := context.Background()

	if _, err := o.Run(ctx, "session-a", Config{
		Types:     []types.ContentType{types.ContentTypeDashboard},
		Workers:   1,
		BatchSize: 10,
	}); err != nil {
		t.Fatalf("Run (first): %v", err)
	}

	first, err := st.GetContent(ctx, types.BuildContentID(types.ContentTypeDashboard, "1"))
	if err != nil {
		t.Fatalf("GetContent (first): %v", err)
	}

	if _, err := o.Run(ctx, "session-b", Config{
		Types:     []types.ContentType{types.ContentTypeDashboard},
		Workers:   1,
		BatchSize: 10,
	}); err != nil {
		t.Fatalf("Run (second): %v", err)
	}

	second, err := st.GetContent(ctx, types.BuildContentID(types.ContentTypeDashboard, "1"))
	if err != nil {
		t.Fatalf("GetContent (second): %v", err)
	}

	wantUpdatedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !first.UpdatedAt.Equal(wantUpdatedAt) {
		t.Fatalf("expected updated_at parsed from source payload %v, got %v", wantUpdatedAt, first.UpdatedAt)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("expected updated_at unchanged across re-extraction with no source changes, first=%v second=%v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestReconcileDeletionsSoftDeletesMissingIDs(t *testing.T) {
	srv := dashboardServer(t, 3)
	defer srv.Close()

	o, st := newTestOrchestrator(t, srv)
	ctx := context.Background()

	stale := &types.ContentItem{
		ID:          types.BuildContentID(types.ContentTypeDashboard, "999"),
		ContentType: types.ContentTypeDashboard,
		ContentData: []byte{0x80},
		ContentSize: 1,
	}
	if err := st.PutContent(ctx, stale); err != nil {
		t.Fatalf("PutContent: %v", err)
	}

	now := time.Now()
	_, err := o.Run(ctx, "session-4", Config{
		Types:        []types.ContentType{types.ContentTypeDashboard},
		Workers:      1,
		BatchSize:    10,
		UpdatedAfter: &now,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := st.GetContent(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if !got.IsDeleted() {
		t.Fatal("expected stale id soft-deleted after incremental run")
	}
}
