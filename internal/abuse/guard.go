package abuse

import (
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Status reported by the guard for an identity.
type Status string

const (
	StatusOK       Status = "ok"
	StatusCooldown Status = "cooldown"
	StatusBan      Status = "ban"
)

// Ban levels.
const (
	BanNone = 0
	BanHour = 1
	BanDay  = 2
)

// Policy holds the escalation thresholds and penalty durations.
type Policy struct {
	SpamInterval       time.Duration // Gap at or under this counts as a spam hit.
	SpamHitsToCooldown int           // Spam hits before a cooldown starts.
	Cooldown           time.Duration // Cooldown duration.
	ViolationsToBan    int           // Violations before the first ban.
	HourBan            time.Duration // Level-1 ban duration.
	DayBan             time.Duration // Level-2 ban duration.
	NoticeInterval     time.Duration // Minimum gap between penalty notices.

	// ResetViolationsOnBanExpiry clears the violation counter once a ban
	// lapses naturally. Off by default: the historical behavior keeps
	// violations forever, leaving a past offender one cooldown away from
	// an instant ban.
	ResetViolationsOnBanExpiry bool
}

// DefaultPolicy returns the stock escalation policy.
func DefaultPolicy() Policy {
	return Policy{
		SpamInterval:       2 * time.Second,
		SpamHitsToCooldown: 3,
		Cooldown:           15 * time.Second,
		ViolationsToBan:    5,
		HourBan:            time.Hour,
		DayBan:             24 * time.Hour,
		NoticeInterval:     5 * time.Second,
	}
}

// Guard tracks message cadence per user identity and imposes escalating,
// time-boxed penalties on sustained abuse: repeated fast messages earn a
// short cooldown, repeated cooldown-breaking earns an hour ban, and
// messaging through a ban earns a day ban. State survives restarts via
// the StateStore; persistence failures are swallowed and the in-memory
// state stays authoritative.
type Guard struct {
	policy Policy
	store  *StateStore
	nowFn  func() time.Time

	mu    sync.Mutex
	state map[string]*State
}

// NewGuard constructs a Guard, loading any persisted state. A nil store
// keeps the guard memory-only; a nil nowFn defaults to time.Now.
func NewGuard(policy Policy, store *StateStore, nowFn func() time.Time) *Guard {
	if nowFn == nil {
		nowFn = time.Now
	}
	state, errLoad := store.Load()
	if errLoad != nil {
		log.WithError(errLoad).Warn("abuse guard: starting with empty state")
	}
	return &Guard{
		policy: policy,
		store:  store,
		nowFn:  nowFn,
		state:  state,
	}
}

// OnMessage processes one inbound message from the given user and returns
// the resulting status plus the seconds left on any active penalty. Every
// transition in here is atomic under the guard mutex and persisted
// best-effort before returning.
func (g *Guard) OnMessage(userID int64) (Status, int) {
	now := g.nowFn().Unix()

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.get(userID)

	if g.policy.ResetViolationsOnBanExpiry && s.BanUntil != 0 && s.BanUntil <= now {
		s.Violations = 0
		s.BanUntil = 0
		s.BanLevel = BanNone
	}

	// Messaging through an active ban escalates it to the day level.
	if s.BanUntil > now {
		s.LastMsgTS = now
		if s.BanLevel < BanDay {
			s.BanLevel = BanDay
			s.BanUntil = now + int64(g.policy.DayBan.Seconds())
			s.CooldownUntil = 0
			s.SpamHits = 0
		}
		g.persist()
		return StatusBan, int(s.BanUntil - now)
	}

	// Messaging through an active cooldown counts as a violation.
	if s.CooldownUntil > now {
		s.Violations++
		s.LastMsgTS = now
		if s.Violations >= g.policy.ViolationsToBan {
			s.BanLevel = BanHour
			s.BanUntil = now + int64(g.policy.HourBan.Seconds())
			s.CooldownUntil = 0
			s.SpamHits = 0
			g.persist()
			return StatusBan, int(s.BanUntil - now)
		}
		g.persist()
		return StatusCooldown, int(s.CooldownUntil - now)
	}

	// Not penalized: detect spam by message interval.
	if s.LastMsgTS != 0 && now-s.LastMsgTS <= int64(g.policy.SpamInterval.Seconds()) {
		s.SpamHits++
	} else {
		s.SpamHits = 0
	}
	s.LastMsgTS = now

	if s.SpamHits >= g.policy.SpamHitsToCooldown {
		s.SpamHits = 0
		s.CooldownUntil = now + int64(g.policy.Cooldown.Seconds())
		s.Violations++

		if s.Violations >= g.policy.ViolationsToBan {
			s.BanLevel = BanHour
			s.BanUntil = now + int64(g.policy.HourBan.Seconds())
			s.CooldownUntil = 0
			g.persist()
			return StatusBan, int(s.BanUntil - now)
		}
		g.persist()
		return StatusCooldown, int(g.policy.Cooldown.Seconds())
	}

	g.persist()
	return StatusOK, 0
}

// Status reports the current penalty state without processing a message.
func (g *Guard) Status(userID int64) (Status, int) {
	now := g.nowFn().Unix()

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.get(userID)
	if s.BanUntil > now {
		return StatusBan, int(s.BanUntil - now)
	}
	if s.CooldownUntil > now {
		return StatusCooldown, int(s.CooldownUntil - now)
	}
	return StatusOK, 0
}

// ShouldNotice reports whether enough time has passed since the user was
// last told about a penalty. Callers that send a notice must follow up
// with MarkNotice; the guard does not infer it.
func (g *Guard) ShouldNotice(userID int64) bool {
	now := g.nowFn().Unix()

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.get(userID)
	return now-s.LastNoticeTS >= int64(g.policy.NoticeInterval.Seconds())
}

// MarkNotice records that a penalty notice was just shown to the user.
func (g *Guard) MarkNotice(userID int64) {
	now := g.nowFn().Unix()

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.get(userID)
	s.LastNoticeTS = now
	g.persist()
}

// Snapshot returns a copy of the stored state for one identity, or nil
// when the identity has never been seen.
func (g *Guard) Snapshot(userID int64) *State {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.state[identityKey(userID)]
	if !ok {
		return nil
	}
	copied := *s
	return &copied
}

// get returns the state record for a user, creating it lazily.
// Caller must hold the mutex.
func (g *Guard) get(userID int64) *State {
	key := identityKey(userID)
	s := g.state[key]
	if s == nil {
		s = &State{}
		g.state[key] = s
	}
	return s
}

// persist flushes the full state map best-effort. Failures are swallowed:
// the in-memory state remains authoritative for the process lifetime.
// Caller must hold the mutex.
func (g *Guard) persist() {
	if errSave := g.store.Save(g.state); errSave != nil {
		log.WithError(errSave).Debug("abuse guard: persist failed")
	}
}

func identityKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
