package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/patrickmn/go-cache"
)

// Local is an in-process KV used when no Redis address is configured.
// Values are stored as JSON so callers see the same copy semantics as Redis.
type Local struct {
	c *cache.Cache
}

// NewLocal creates a local store that purges expired keys every cleanup interval.
func NewLocal(cleanup time.Duration) *Local {
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &Local{c: cache.New(cache.NoExpiration, cleanup)}
}

func (l *Local) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	l.c.Set(key, data, ttl)
	return nil
}

func (l *Local) GetJSON(_ context.Context, key string, dest any) error {
	v, ok := l.c.Get(key)
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(v.([]byte), dest)
}

func (l *Local) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		l.c.Delete(k)
	}
	return nil
}

func (l *Local) HealthCheck(context.Context) error { return nil }

func (l *Local) Close() error {
	l.c.Flush()
	return nil
}
