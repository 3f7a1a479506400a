package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) *FixedWindowLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, window)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l
}

func TestFixedWindowAllowsWithinQuota(t *testing.T) {
	l := newTestLimiter(t, 3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("ip-1") {
			t.Fatalf("request %d should be within quota", i+1)
		}
	}
	if l.Allow("ip-1") {
		t.Fatalf("request over quota should be denied")
	}
}

func TestFixedWindowKeysAreIndependent(t *testing.T) {
	l := newTestLimiter(t, 1, time.Minute)
	if !l.Allow("ip-1") {
		t.Fatalf("first key should be allowed")
	}
	if !l.Allow("ip-2") {
		t.Fatalf("second key should have its own quota")
	}
	if l.Allow("ip-1") {
		t.Fatalf("first key should be exhausted")
	}
}

func TestFixedWindowFailsClosedOnRedisError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l, err := NewFixedWindowLimiter(client, "", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	mr.Close()
	if l.Allow("ip-1") {
		t.Fatalf("expected fail-closed on redis failure")
	}
}

func TestNewFixedWindowLimiterValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if _, err := NewFixedWindowLimiter(client, "", 0, time.Minute); err == nil {
		t.Fatalf("expected zero limit to be rejected")
	}
	if _, err := NewFixedWindowLimiter(client, "", 1, 0); err == nil {
		t.Fatalf("expected zero window to be rejected")
	}
	if _, err := NewRedisFixedWindowLimiter("  ", "", "", 1, time.Minute); err == nil {
		t.Fatalf("expected empty addr to be rejected")
	}
}
