package coordinator

import (
	"sync"
	"testing"
)

func TestClaimRangeAdvancesOffset(t *testing.T) {
	c := New(50)
	off1, limit1, ok := c.ClaimRange()
	if !ok || off1 != 0 || limit1 != 50 {
		t.Fatalf("expected (0,50,true), got (%d,%d,%v)", off1, limit1, ok)
	}
	off2, _, ok := c.ClaimRange()
	if !ok || off2 != 50 {
		t.Fatalf("expected offset 50, got %d", off2)
	}
}

func TestClaimRangeStopsAfterAllWorkersDone(t *testing.T) {
	c := New(10)
	c.SetTotalWorkers(2)

	c.MarkWorkerDone()
	if _, _, ok := c.ClaimRange(); !ok {
		t.Fatal("expected claim still available after 1 of 2 workers done")
	}
	c.MarkWorkerDone()
	if _, _, ok := c.ClaimRange(); ok {
		t.Fatal("expected no claim after all workers done")
	}
}

func TestClaimRangeNoDuplicateOffsetsConcurrent(t *testing.T) {
	c := New(1)
	seen := make(map[int64]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			off, _, ok := c.ClaimRange()
			if !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[off] {
				t.Errorf("duplicate offset claimed: %d", off)
			}
			seen[off] = true
		}()
	}
	wg.Wait()
	if len(seen) != 100 {
		t.Fatalf("expected 100 distinct offsets, got %d", len(seen))
	}
}

func TestSeekOffsetResumesFromCheckpoint(t *testing.T) {
	c := New(10)
	c.SeekOffset(50)

	off, limit, ok := c.ClaimRange()
	if !ok || off != 50 || limit != 10 {
		t.Fatalf("expected (50,10,true), got (%d,%d,%v)", off, limit, ok)
	}
}

func TestSeekOffsetNeverMovesBackward(t *testing.T) {
	c := New(10)
	c.ClaimRange() // offset 0, nextOffset -> 10
	c.ClaimRange() // offset 10, nextOffset -> 20

	c.SeekOffset(5)

	off, _, ok := c.ClaimRange()
	if !ok || off != 20 {
		t.Fatalf("expected seek backward to be ignored, got offset %d ok=%v", off, ok)
	}
}

func TestCurrentOffsetReflectsProgress(t *testing.T) {
	c := New(10)
	if got := c.CurrentOffset(); got != 0 {
		t.Fatalf("expected 0 before any claim, got %d", got)
	}
	c.ClaimRange()
	c.ClaimRange()
	if got := c.CurrentOffset(); got != 20 {
		t.Fatalf("expected 20 after 2 claims of stride 10, got %d", got)
	}
}

func TestMultiFolderRoundRobin(t *testing.T) {
	c := NewMultiFolder([]string{"a", "b"}, 10)

	claim1, ok := c.ClaimRange()
	if !ok || claim1.FolderID != "a" || claim1.Offset != 0 {
		t.Fatalf("expected folder a offset 0, got %+v ok=%v", claim1, ok)
	}
	claim2, ok := c.ClaimRange()
	if !ok || claim2.FolderID != "b" || claim2.Offset != 0 {
		t.Fatalf("expected folder b offset 0, got %+v ok=%v", claim2, ok)
	}
	claim3, ok := c.ClaimRange()
	if !ok || claim3.FolderID != "a" || claim3.Offset != 10 {
		t.Fatalf("expected folder a offset 10, got %+v ok=%v", claim3, ok)
	}
}

func TestMultiFolderSkipsExhaustedFolders(t *testing.T) {
	c := NewMultiFolder([]string{"a", "b"}, 10)
	c.SetTotalWorkers(1)

	c.MarkWorkerDone("a")

	claim, ok := c.ClaimRange()
	if !ok || claim.FolderID != "b" {
		t.Fatalf("expected folder b claimed (a exhausted), got %+v ok=%v", claim, ok)
	}

	c.MarkWorkerDone("b")
	if !c.AllExhausted() {
		t.Fatal("expected all folders exhausted")
	}
	if _, ok := c.ClaimRange(); ok {
		t.Fatal("expected no claim once all folders exhausted")
	}
}

func TestMultiFolderFolderOffsetsAndSeek(t *testing.T) {
	c := NewMultiFolder([]string{"a", "b"}, 10)
	c.ClaimRange() // a -> 0
	c.ClaimRange() // b -> 0
	c.ClaimRange() // a -> 10

	offsets := c.FolderOffsets()
	if offsets["a"] != 20 || offsets["b"] != 10 {
		t.Fatalf("expected a=20 b=10, got %+v", offsets)
	}

	resumed := NewMultiFolder([]string{"a", "b"}, 10)
	resumed.SeekFolderOffsets(offsets)

	claim, ok := resumed.ClaimRange()
	if !ok || claim.FolderID != "a" || claim.Offset != 20 {
		t.Fatalf("expected resumed folder a to continue at offset 20, got %+v ok=%v", claim, ok)
	}
}

func TestMultiFolderSeekFolderOffsetsNeverMovesBackward(t *testing.T) {
	c := NewMultiFolder([]string{"a"}, 10)
	c.ClaimRange() // a -> 10
	c.ClaimRange() // a -> 20

	c.SeekFolderOffsets(map[string]int64{"a": 5})

	claim, ok := c.ClaimRange()
	if !ok || claim.Offset != 20 {
		t.Fatalf("expected backward seek ignored, got offset %d", claim.Offset)
	}
}

func TestMultiFolderNoDuplicatePairs(t *testing.T) {
	c := NewMultiFolder([]string{"a", "b", "c"}, 5)
	type pair struct {
		folder string
		offset int64
	}
	seen := make(map[pair]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 90; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claim, ok := c.ClaimRange()
			if !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			p := pair{claim.FolderID, claim.Offset}
			if seen[p] {
				t.Errorf("duplicate claim: %+v", p)
			}
			seen[p] = true
		}()
	}
	wg.Wait()
}
