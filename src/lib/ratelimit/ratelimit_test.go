package ratelimit

import (
	"testing"
	"time"

	"github.com/blaxel-ai/filehunter/src/lib/config"
)

func newTestLimiter(rps, burst uint32) *Limiter {
	return New(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: rps,
		BurstSize:         burst,
		CleanupInterval:   600,
	})
}

func TestCheckAllowsWithinBurst(t *testing.T) {
	l := newTestLimiter(10, 5)
	for i := 0; i < 5; i++ {
		allowed, _ := l.Check("10.0.0.1")
		if !allowed {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
}

func TestCheckDeniesBeyondBurst(t *testing.T) {
	l := newTestLimiter(1, 1)

	allowed, _ := l.Check("10.0.0.1")
	if !allowed {
		t.Fatal("first request should be allowed")
	}

	allowed, retryAfter := l.Check("10.0.0.1")
	if allowed {
		t.Fatal("second immediate request should be denied")
	}
	if retryAfter < 1 {
		t.Errorf("Retry-After must be at least 1 second, got %d", retryAfter)
	}
}

func TestCheckIsKeyedPerIP(t *testing.T) {
	l := newTestLimiter(1, 1)

	if allowed, _ := l.Check("10.0.0.1"); !allowed {
		t.Fatal("first IP should be allowed")
	}
	if allowed, _ := l.Check("10.0.0.2"); !allowed {
		t.Error("a different IP must have its own bucket")
	}
}

func TestCheckDenialDoesNotConsumeTokens(t *testing.T) {
	l := newTestLimiter(1, 1)
	l.Check("10.0.0.1")

	// Repeated denials must not push the retry horizon further out.
	_, first := l.Check("10.0.0.1")
	for i := 0; i < 10; i++ {
		l.Check("10.0.0.1")
	}
	_, last := l.Check("10.0.0.1")
	if last > first+1 {
		t.Errorf("retry-after grew from %d to %d across denials", first, last)
	}
}

func TestCleanupEvictsIdleClients(t *testing.T) {
	l := newTestLimiter(10, 10)
	l.Check("10.0.0.1")
	l.Check("10.0.0.2")

	l.mu.Lock()
	l.clients["10.0.0.1"].lastSeen = time.Now().Add(-2 * l.cleanupInterval)
	l.mu.Unlock()

	l.cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.clients["10.0.0.1"]; ok {
		t.Error("idle client should have been evicted")
	}
	if _, ok := l.clients["10.0.0.2"]; !ok {
		t.Error("active client should have been kept")
	}
}
