package abuse

import (
	"strings"
	"sync"
	"time"
)

// Default bucket settings per scope. User buckets are deliberately
// tighter than IP buckets: one Telegram account maps to one human,
// while an IP may front a NAT.
const (
	DefaultUserCapacity     = 8.0
	DefaultUserRefillPerSec = 0.5
	DefaultIPCapacity       = 30.0
	DefaultIPRefillPerSec   = 1.0
	DefaultGCTTL            = time.Hour
)

// gcMinInterval bounds how often idle buckets are swept, regardless of
// call volume.
const gcMinInterval = 60 * time.Second

// LimiterConfig holds per-scope bucket settings for a Limiter.
type LimiterConfig struct {
	UserCapacity     float64
	UserRefillPerSec float64
	IPCapacity       float64
	IPRefillPerSec   float64
	GCTTL            time.Duration
}

// DefaultLimiterConfig returns the stock limiter settings.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		UserCapacity:     DefaultUserCapacity,
		UserRefillPerSec: DefaultUserRefillPerSec,
		IPCapacity:       DefaultIPCapacity,
		IPRefillPerSec:   DefaultIPRefillPerSec,
		GCTTL:            DefaultGCTTL,
	}
}

// Limiter bounds the rate of weighted operations per identity using one
// lazily refilled token bucket per (scope, identity) pair. Buckets are
// created on first access and swept once they sit idle past the TTL.
type Limiter struct {
	cfg   LimiterConfig
	nowFn func() time.Time

	mu     sync.Mutex
	users  map[int64]*bucket
	ips    map[string]*bucket
	lastGC time.Time
}

// NewLimiter constructs a Limiter. A nil nowFn defaults to time.Now,
// and zero config fields fall back to the stock settings.
func NewLimiter(cfg LimiterConfig, nowFn func() time.Time) *Limiter {
	if nowFn == nil {
		nowFn = time.Now
	}
	if cfg.UserCapacity <= 0 {
		cfg.UserCapacity = DefaultUserCapacity
	}
	if cfg.UserRefillPerSec == 0 {
		cfg.UserRefillPerSec = DefaultUserRefillPerSec
	}
	if cfg.IPCapacity <= 0 {
		cfg.IPCapacity = DefaultIPCapacity
	}
	if cfg.IPRefillPerSec == 0 {
		cfg.IPRefillPerSec = DefaultIPRefillPerSec
	}
	if cfg.GCTTL <= 0 {
		cfg.GCTTL = DefaultGCTTL
	}
	return &Limiter{
		cfg:    cfg,
		nowFn:  nowFn,
		users:  make(map[int64]*bucket),
		ips:    make(map[string]*bucket),
		lastGC: nowFn(),
	}
}

// AllowUser checks the per-user bucket for the given cost. It reports
// whether the action is allowed and, on denial, how many whole seconds
// the caller should wait before retrying.
func (l *Limiter) AllowUser(userID int64, cost float64) (bool, int) {
	now := l.nowFn()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.gc(now)
	b := l.users[userID]
	if b == nil {
		b = newBucket(l.cfg.UserCapacity, l.cfg.UserRefillPerSec, now)
		l.users[userID] = b
	}
	return b.take(now, cost)
}

// AllowIP checks the per-IP bucket for the given cost. Empty or
// whitespace addresses collapse into a shared "unknown" bucket.
func (l *Limiter) AllowIP(ip string, cost float64) (bool, int) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	now := l.nowFn()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.gc(now)
	b := l.ips[ip]
	if b == nil {
		b = newBucket(l.cfg.IPCapacity, l.cfg.IPRefillPerSec, now)
		l.ips[ip] = b
	}
	return b.take(now, cost)
}

// gc drops buckets idle past the TTL. It runs at most once per
// gcMinInterval so hot paths never pay for a full sweep on every call.
// Caller must hold the mutex.
func (l *Limiter) gc(now time.Time) {
	if now.Sub(l.lastGC) < gcMinInterval {
		return
	}
	l.lastGC = now

	for id, b := range l.users {
		if now.Sub(b.updatedAt) >= l.cfg.GCTTL {
			delete(l.users, id)
		}
	}
	for ip, b := range l.ips {
		if now.Sub(b.updatedAt) >= l.cfg.GCTTL {
			delete(l.ips, ip)
		}
	}
}
