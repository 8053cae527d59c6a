package leads

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestCooldownMemoryBackend(t *testing.T) {
	clock := newFakeClock()
	cd := NewCooldown("", 10*time.Minute, clock.Now, nil)

	ok, _ := cd.TryAcquire(context.Background(), "tg:42")
	if !ok {
		t.Fatalf("expected first acquire to pass")
	}
	ok, left := cd.TryAcquire(context.Background(), "tg:42")
	if ok {
		t.Fatalf("expected second acquire to be blocked")
	}
	if left != 10*time.Minute {
		t.Fatalf("expected full cooldown left, got %v", left)
	}

	// Another identity is unaffected.
	if ok, _ := cd.TryAcquire(context.Background(), "tg:43"); !ok {
		t.Fatalf("expected independent identity to pass")
	}

	clock.Advance(10 * time.Minute)
	if ok, _ := cd.TryAcquire(context.Background(), "tg:42"); !ok {
		t.Fatalf("expected acquire after expiry")
	}
}

func TestCooldownReleaseFreesSlot(t *testing.T) {
	clock := newFakeClock()
	cd := NewCooldown("", 10*time.Minute, clock.Now, nil)

	if ok, _ := cd.TryAcquire(context.Background(), "tg:42"); !ok {
		t.Fatalf("expected acquire to pass")
	}
	cd.Release(context.Background(), "tg:42")
	if ok, _ := cd.TryAcquire(context.Background(), "tg:42"); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestCooldownZeroTTLDisabled(t *testing.T) {
	cd := NewCooldown("", 0, nil, nil)
	for i := 0; i < 3; i++ {
		if ok, _ := cd.TryAcquire(context.Background(), "tg:42"); !ok {
			t.Fatalf("expected zero ttl to disable the cooldown")
		}
	}
}

func TestCooldownBadRedisFallsBackToMemory(t *testing.T) {
	clock := newFakeClock()
	// Nothing listens here; the breaker should trip and memory take over.
	cd := NewCooldown("redis://127.0.0.1:1/0", time.Minute, clock.Now, nil)

	if ok, _ := cd.TryAcquire(context.Background(), "tg:42"); !ok {
		t.Fatalf("expected memory fallback to pass")
	}
	if ok, _ := cd.TryAcquire(context.Background(), "tg:42"); ok {
		t.Fatalf("expected memory fallback to block the repeat")
	}
}
