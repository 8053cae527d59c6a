package abuse

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestGuard(t *testing.T, clock *fakeClock) *Guard {
	t.Helper()
	return NewGuard(DefaultPolicy(), nil, clock.Now)
}

// spamIntoCooldown sends fast messages until the guard reports a cooldown.
func spamIntoCooldown(t *testing.T, g *Guard, clock *fakeClock, userID int64) int {
	t.Helper()
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		status, left := g.OnMessage(userID)
		if status == StatusCooldown {
			return left
		}
		if status != StatusOK {
			t.Fatalf("unexpected status %q while spamming", status)
		}
	}
	t.Fatalf("never reached cooldown")
	return 0
}

func TestGuardCooldownOnThirdFastMessage(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(t, clock)

	// First message establishes the baseline; spam hits only count from
	// the second message on.
	if status, _ := g.OnMessage(7); status != StatusOK {
		t.Fatalf("first message: expected ok")
	}
	for i := 0; i < 2; i++ {
		clock.Advance(time.Second)
		if status, _ := g.OnMessage(7); status != StatusOK {
			t.Fatalf("message %d: expected ok", i+2)
		}
	}
	clock.Advance(time.Second)
	status, left := g.OnMessage(7)
	if status != StatusCooldown {
		t.Fatalf("expected cooldown, got %q", status)
	}
	if left != 15 {
		t.Fatalf("expected 15s cooldown, got %d", left)
	}

	// Breaking the cooldown keeps it and counts a violation.
	clock.Advance(time.Second)
	status, left = g.OnMessage(7)
	if status != StatusCooldown {
		t.Fatalf("expected cooldown to continue, got %q", status)
	}
	if left != 14 {
		t.Fatalf("expected 14s remaining, got %d", left)
	}
	if got := g.Snapshot(7).Violations; got != 2 {
		t.Fatalf("expected 2 violations, got %d", got)
	}
}

func TestGuardSlowMessagesResetSpamHits(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(t, clock)

	for i := 0; i < 20; i++ {
		clock.Advance(3 * time.Second)
		if status, _ := g.OnMessage(7); status != StatusOK {
			t.Fatalf("message %d: expected ok for slow sender", i+1)
		}
	}
}

func TestGuardFiveViolationsBanForAnHour(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(t, clock)

	// Each cooldown earns one violation; breaking it earns more. Rack up
	// violations by spamming into a cooldown, then messaging through it.
	spamIntoCooldown(t, g, clock, 7) // violation 1
	var status Status
	var left int
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		status, left = g.OnMessage(7) // violations 2..5
	}
	if status != StatusBan {
		t.Fatalf("expected ban after 5 violations, got %q", status)
	}
	if left != 3600 {
		t.Fatalf("expected 3600s ban, got %d", left)
	}
	if got := g.Snapshot(7).BanLevel; got != BanHour {
		t.Fatalf("expected ban level %d, got %d", BanHour, got)
	}
}

func TestGuardBreakingBanEscalatesToDay(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(t, clock)

	spamIntoCooldown(t, g, clock, 7)
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		g.OnMessage(7)
	}
	if status, _ := g.Status(7); status != StatusBan {
		t.Fatalf("expected active hour ban")
	}

	// Messaging during the hour ban escalates to a day ban.
	clock.Advance(10 * time.Minute)
	status, left := g.OnMessage(7)
	if status != StatusBan {
		t.Fatalf("expected ban, got %q", status)
	}
	if left != 86400 {
		t.Fatalf("expected 86400s ban, got %d", left)
	}
	if got := g.Snapshot(7).BanLevel; got != BanDay {
		t.Fatalf("expected ban level %d, got %d", BanDay, got)
	}

	// A level-2 ban just keeps running on further messages.
	clock.Advance(time.Hour)
	status, left = g.OnMessage(7)
	if status != StatusBan {
		t.Fatalf("expected ban to continue, got %q", status)
	}
	if left != 86400-3600 {
		t.Fatalf("expected %ds remaining, got %d", 86400-3600, left)
	}
}

func TestGuardViolationsSurviveBanExpiryByDefault(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(t, clock)

	spamIntoCooldown(t, g, clock, 7)
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		g.OnMessage(7)
	}

	// Wait out the hour ban, then trigger a single fresh cooldown: the
	// old violations still count, so it bans immediately.
	clock.Advance(2 * time.Hour)
	if status, _ := g.OnMessage(7); status != StatusOK {
		t.Fatalf("expected ok after ban expiry")
	}
	var status Status
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		status, _ = g.OnMessage(7)
	}
	if status != StatusBan {
		t.Fatalf("expected instant ban from retained violations, got %q", status)
	}
}

func TestGuardViolationResetPolicy(t *testing.T) {
	clock := newFakeClock()
	policy := DefaultPolicy()
	policy.ResetViolationsOnBanExpiry = true
	g := NewGuard(policy, nil, clock.Now)

	spamIntoCooldown(t, g, clock, 7)
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		g.OnMessage(7)
	}

	clock.Advance(2 * time.Hour)
	if status, _ := g.OnMessage(7); status != StatusOK {
		t.Fatalf("expected ok after ban expiry")
	}
	if got := g.Snapshot(7).Violations; got != 0 {
		t.Fatalf("expected violations cleared, got %d", got)
	}

	// A fresh cooldown now starts a new cycle instead of banning.
	if left := spamIntoCooldown(t, g, clock, 7); left != 15 {
		t.Fatalf("expected plain 15s cooldown, got %d", left)
	}
}

func TestGuardShouldNoticeThrottles(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(t, clock)

	if !g.ShouldNotice(7) {
		t.Fatalf("expected first notice to pass")
	}
	g.MarkNotice(7)
	if g.ShouldNotice(7) {
		t.Fatalf("expected notice suppressed inside the window")
	}
	clock.Advance(5 * time.Second)
	if !g.ShouldNotice(7) {
		t.Fatalf("expected notice allowed after the window")
	}
}

func TestGuardStatePersistsAcrossRestart(t *testing.T) {
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "abuse_state.json")
	store := NewStateStore(path)

	g := NewGuard(DefaultPolicy(), store, clock.Now)
	spamIntoCooldown(t, g, clock, 42)

	// A new guard over the same file sees the active cooldown.
	restarted := NewGuard(DefaultPolicy(), store, clock.Now)
	status, left := restarted.Status(42)
	if status != StatusCooldown {
		t.Fatalf("expected persisted cooldown, got %q", status)
	}
	if left <= 0 || left > 15 {
		t.Fatalf("unexpected seconds left: %d", left)
	}

	before := g.Snapshot(42)
	after := restarted.Snapshot(42)
	if *before != *after {
		t.Fatalf("expected identical state after reload: %+v vs %+v", before, after)
	}
}

func TestGuardCorruptStateFileFailsOpen(t *testing.T) {
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "abuse_state.json")
	if errWrite := os.WriteFile(path, []byte("{not json"), 0o644); errWrite != nil {
		t.Fatalf("write corrupt file: %v", errWrite)
	}

	g := NewGuard(DefaultPolicy(), NewStateStore(path), clock.Now)
	if status, _ := g.OnMessage(7); status != StatusOK {
		t.Fatalf("expected fresh state after corrupt load, got non-ok")
	}
}
