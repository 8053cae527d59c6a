package leads

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	redisBreakerDuration = 30 * time.Second
	cooldownKeyPrefix    = "lead:cd:"
)

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Cooldown enforces a minimum gap between lead submissions per identity.
// Redis is the preferred backend so the gap survives restarts and is
// shared across replicas; when Redis is unreachable a circuit breaker
// routes checks to process memory for a while instead of failing the
// submission.
type Cooldown struct {
	ttl            time.Duration
	redisURL       string
	nowFn          func() time.Time
	newRedisClient RedisClientFactory
	memory         *memoryCooldown

	mu           sync.Mutex
	redisClient  *redis.Client
	breakerUntil time.Time
}

// NewCooldown constructs a Cooldown. An empty redisURL keeps it
// memory-only; a nil nowFn defaults to time.Now.
func NewCooldown(redisURL string, ttl time.Duration, nowFn func() time.Time, newRedisClient RedisClientFactory) *Cooldown {
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Cooldown{
		ttl:            ttl,
		redisURL:       strings.TrimSpace(redisURL),
		nowFn:          nowFn,
		newRedisClient: newRedisClient,
		memory:         newMemoryCooldown(),
	}
}

// TryAcquire attempts to start a cooldown for the identity. It returns
// true when the identity was free, or false plus the time left on the
// running cooldown.
func (c *Cooldown) TryAcquire(ctx context.Context, identity string) (bool, time.Duration) {
	if c == nil || c.ttl <= 0 || strings.TrimSpace(identity) == "" {
		return true, 0
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := c.nowFn()

	if c.redisURL != "" && !c.isBreakerActive(now) {
		ok, left, errRedis := c.tryAcquireRedis(ctx, identity)
		if errRedis == nil {
			return ok, left
		}
		c.tripBreaker(errRedis, now)
	}
	return c.memory.tryAcquire(identity, c.ttl, now)
}

// Release clears the cooldown for the identity, used when a submission
// fails after the slot was taken.
func (c *Cooldown) Release(ctx context.Context, identity string) {
	if c == nil || strings.TrimSpace(identity) == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := c.nowFn()
	c.memory.release(identity)
	if c.redisURL == "" || c.isBreakerActive(now) {
		return
	}
	client, errEnsure := c.ensureRedis(ctx)
	if errEnsure != nil {
		c.tripBreaker(errEnsure, now)
		return
	}
	if errDel := client.Del(ctx, cooldownKeyPrefix+identity).Err(); errDel != nil {
		c.tripBreaker(errDel, now)
	}
}

func (c *Cooldown) tryAcquireRedis(ctx context.Context, identity string) (bool, time.Duration, error) {
	client, errEnsure := c.ensureRedis(ctx)
	if errEnsure != nil {
		return false, 0, errEnsure
	}
	key := cooldownKeyPrefix + identity
	set, errSet := client.SetNX(ctx, key, 1, c.ttl).Result()
	if errSet != nil {
		return false, 0, errSet
	}
	if set {
		return true, 0, nil
	}
	left, errTTL := client.PTTL(ctx, key).Result()
	if errTTL != nil {
		return false, 0, errTTL
	}
	if left <= 0 {
		left = c.ttl
	}
	return false, left, nil
}

func (c *Cooldown) isBreakerActive(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.breakerUntil.IsZero() {
		return false
	}
	if now.Before(c.breakerUntil) {
		return true
	}
	c.breakerUntil = time.Time{}
	return false
}

func (c *Cooldown) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.breakerUntil.IsZero() && now.Before(c.breakerUntil) {
		return
	}
	c.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("lead cooldown: redis unavailable, falling back to memory")
}

func (c *Cooldown) ensureRedis(ctx context.Context) (*redis.Client, error) {
	if c.redisURL == "" {
		return nil, errors.New("lead cooldown: missing redis url")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.redisClient != nil {
		return c.redisClient, nil
	}
	options, errParse := redis.ParseURL(c.redisURL)
	if errParse != nil {
		return nil, errParse
	}
	client := c.newRedisClient(options)
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	c.redisClient = client
	return client, nil
}

// memoryCooldown is the in-process fallback backend.
type memoryCooldown struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func newMemoryCooldown() *memoryCooldown {
	return &memoryCooldown{expires: make(map[string]time.Time)}
}

func (m *memoryCooldown) tryAcquire(identity string, ttl time.Duration, now time.Time) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if until, ok := m.expires[identity]; ok && until.After(now) {
		return false, until.Sub(now)
	}
	m.expires[identity] = now.Add(ttl)

	// Opportunistic sweep keeps the map from growing unbounded.
	for key, until := range m.expires {
		if !until.After(now) {
			delete(m.expires, key)
		}
	}
	return true, 0
}

func (m *memoryCooldown) release(identity string) {
	m.mu.Lock()
	delete(m.expires, identity)
	m.mu.Unlock()
}
