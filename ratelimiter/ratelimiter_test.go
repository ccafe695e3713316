package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestAcquireWithinCapacitySucceeds(t *testing.T) {
	rl := New(Config{PerMinute: 100, PerSecond: 10})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := rl.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
}

func TestAcquireBlocksPastSecondWindow(t *testing.T) {
	rl := New(Config{PerMinute: 1000, PerSecond: 2})
	ctx := context.Background()

	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctxShort, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctxShort)
	if err == nil {
		t.Fatal("expected third acquire within the same second to block until timeout")
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	rl := New(Config{PerMinute: 1, PerSecond: 1})
	ctx := context.Background()
	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctxCancel, cancel := context.WithCancel(ctx)
	cancel()

	err := rl.Acquire(ctxCancel)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestOn429GrowsMultiplier(t *testing.T) {
	rl := New(Config{})
	rl.On429()

	snap := rl.Snapshot()
	if snap.Multiplier != 1.5 {
		t.Fatalf("expected multiplier 1.5, got %v", snap.Multiplier)
	}
	if snap.Total429 != 1 {
		t.Fatalf("expected total429 1, got %v", snap.Total429)
	}
}

func TestOnSuccessDecaysMultiplierEveryTenth(t *testing.T) {
	rl := New(Config{})
	rl.On429() // M = 1.5

	for i := 0; i < 9; i++ {
		rl.OnSuccess()
	}
	if m := rl.Snapshot().Multiplier; m != 1.5 {
		t.Fatalf("expected no decay before 10th success, got %v", m)
	}

	rl.OnSuccess() // 10th consecutive success
	if m := rl.Snapshot().Multiplier; m != 1.5*backoffDecay {
		t.Fatalf("expected decay to %v, got %v", 1.5*backoffDecay, m)
	}
}

func TestOnSuccessNeverDecaysBelowOne(t *testing.T) {
	rl := New(Config{})
	for round := 0; round < 5; round++ {
		for i := 0; i < successesPerDecay; i++ {
			rl.OnSuccess()
		}
	}
	if m := rl.Snapshot().Multiplier; m != 1.0 {
		t.Fatalf("expected multiplier floored at 1.0, got %v", m)
	}
}

func TestOn429ResetsConsecutiveSuccesses(t *testing.T) {
	rl := New(Config{})
	for i := 0; i < 5; i++ {
		rl.OnSuccess()
	}
	rl.On429()
	if snap := rl.Snapshot(); snap.ConsecutiveSuccesses != 0 {
		t.Fatalf("expected consecutive successes reset, got %v", snap.ConsecutiveSuccesses)
	}
}
