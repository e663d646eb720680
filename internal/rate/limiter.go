// Package rate keys token-bucket limiters by caller, for login throttling
// and outbound notification calls.
package rate

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused key keeps its bucket.
const DefaultIdleTTL = 10 * time.Minute

// Config defines the bucket given to every new key.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	// IdleTTL evicts keys not used for this long. It is raised to the time a
	// bucket needs to refill, so eviction never forgives a throttled key early.
	IdleTTL           time.Duration
}

func (c Config) limit() rate.Limit {
	if c.RequestsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.RequestsPerSecond)
}

func (c Config) idleTTL() time.Duration {
	ttl := c.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if c.RequestsPerSecond > 0 {
		refill := time.Duration(float64(c.Burst) / c.RequestsPerSecond * float64(time.Second))
		if refill > ttl {
			ttl = refill
		}
	}
	return ttl
}

// Manager holds one limiter per key. Idle keys expire.
type Manager struct {
	limiters *cache.Cache
	defaults Config
	ttl      time.Duration
}

func NewManager(defaults Config) *Manager {
	if defaults.Burst <= 0 {
		defaults.Burst = 1
	}
	ttl := defaults.idleTTL()
	return &Manager{
		limiters: cache.New(ttl, ttl),
		defaults: defaults,
		ttl:      ttl,
	}
}

// GetLimiter returns the limiter for key, creating it on first use. Each call
// extends the key's idle deadline.
func (m *Manager) GetLimiter(key string) *rate.Limiter {
	if v, ok := m.limiters.Get(key); ok {
		lim := v.(*rate.Limiter)
		m.limiters.Set(key, lim, m.ttl)
		return lim
	}
	lim := rate.NewLimiter(m.defaults.limit(), m.defaults.Burst)
	if err := m.limiters.Add(key, lim, m.ttl); err != nil {
		// lost the race to another caller
		if v, ok := m.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// Allow reports whether key may proceed now, consuming a token if so.
func (m *Manager) Allow(key string) bool {
	return m.GetLimiter(key).Allow()
}

// Wait blocks until key may proceed or ctx is done.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}

// Reset forgets the limiter of key, for example after a successful login.
func (m *Manager) Reset(key string) {
	m.limiters.Delete(key)
}

// Len returns the number of tracked keys, including expired keys not yet
// purged.
func (m *Manager) Len() int {
	return m.limiters.ItemCount()
}
