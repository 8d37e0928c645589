package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// one event per 100ms, burst of 2
	l := NewLimiter(100*time.Millisecond, 2)

	if !l.Allow() {
		t.Error("expected first event to be allowed")
	}
	if !l.Allow() {
		t.Error("expected second event to be allowed (burst)")
	}
	if l.Allow() {
		t.Error("expected third event to be rejected (burst exhausted)")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected event to be allowed after refill")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("event %d rejected by unlimited limiter", i)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(20*time.Millisecond, 1)

	waited, err := l.Wait(context.Background())
	if err != nil || waited {
		t.Fatalf("first Wait = %v, %v; want no wait", waited, err)
	}

	start := time.Now()
	waited, err = l.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !waited {
		t.Error("expected second Wait to be throttled")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("Wait returned too early")
	}
}

func TestLimiter_WaitCanceled(t *testing.T) {
	l := NewLimiter(time.Hour, 1)
	l.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Wait(ctx); err == nil {
		t.Fatal("expected canceled context error")
	}
}
