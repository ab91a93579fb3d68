package ingest

import (
	"testing"
	"time"
)

func TestCallerLimiterBurstAndRefill(t *testing.T) {
	l := newCallerLimiter(5)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.allowAt("192.0.2.1", now) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allowAt("192.0.2.1", now) {
		t.Fatalf("sixth request within the minute should be limited")
	}
	if !l.allowAt("198.51.100.7", now) {
		t.Fatalf("callers must not share a bucket")
	}
	if !l.allowAt("192.0.2.1", now.Add(12*time.Second)) {
		t.Fatalf("one token should refill after 12s")
	}
}

func TestCallerLimiterEvict(t *testing.T) {
	l := newCallerLimiter(5)
	l.allowAt("192.0.2.1", time.Now().Add(-time.Hour))
	l.Allow("198.51.100.7")
	l.Evict(10 * time.Minute)
	if l.size() != 1 {
		t.Fatalf("expected one limiter after eviction, got %d", l.size())
	}
}

func TestCallerLimiterSixtySecondWindow(t *testing.T) {
	l := newCallerLimiter(5)
	start := time.Now()
	allowed := 0
	for i := 0; i < 60; i++ {
		if l.allowAt("192.0.2.1", start.Add(time.Duration(i)*time.Second)) {
			allowed++
		}
	}
	// Full burst plus one refill every 12s within the first minute.
	if allowed != 9 {
		t.Fatalf("allowed within one 60s window: %d, want 9", allowed)
	}
}
