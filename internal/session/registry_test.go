package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/store"
)

func newRedisKV(t *testing.T) store.KV {
	t.Helper()
	mr := miniredis.RunT(t)
	kv, err := store.NewHybrid(mr.Addr(), 0, "", "", store.PGPoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestRegistry_LookupFollowsSessionLifecycle(t *testing.T) {
	fc := clockwork.NewFakeClock()
	reg := NewRegistry(&mockAuth{}, store.NewLocal(time.Minute), Options{Timeout: time.Minute, Clock: fc})

	c := reg.New()
	res, err := c.Login(context.Background(), "client@example.com", "password123")
	require.NoError(t, err)

	got, ok := reg.Lookup(context.Background(), res.Token)
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, reg.Active())

	fc.Advance(2 * time.Minute)
	require.Eventually(t, func() bool { return reg.Active() == 0 }, time.Second, 5*time.Millisecond)

	_, ok = reg.Lookup(context.Background(), res.Token)
	assert.False(t, ok)
}

func TestRegistry_PendingMFA(t *testing.T) {
	reg := NewRegistry(&mockAuth{}, store.NewLocal(time.Minute), Options{Clock: clockwork.NewFakeClock()})

	c := reg.New()
	_, err := c.Login(context.Background(), "admin@example.com", "admin123")
	require.NoError(t, err)

	pending, ok := reg.PendingFor("CLIENT-002")
	require.True(t, ok)
	assert.Same(t, c, pending)

	mfa, err := pending.VerifyMFA(context.Background(), "CLIENT-002", "654321")
	require.NoError(t, err)

	_, ok = reg.PendingFor("CLIENT-002")
	assert.False(t, ok)

	got, ok := reg.Lookup(context.Background(), mfa.Token)
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestRegistry_RestoresFromSharedStore(t *testing.T) {
	kv := newRedisKV(t)
	fc := clockwork.NewFakeClock()

	first := NewRegistry(&mockAuth{}, kv, Options{Clock: fc})
	c := first.New()
	res, err := c.Login(context.Background(), "client@example.com", "password123")
	require.NoError(t, err)

	// a second process sharing the store picks the session up by token
	second := NewRegistry(&mockAuth{}, kv, Options{Clock: fc})
	restored, ok := second.Lookup(context.Background(), res.Token)
	require.True(t, ok)
	assert.Equal(t, c.ID(), restored.ID())
	assert.Equal(t, "CLIENT-001", restored.User().UserID)

	require.NoError(t, restored.Logout(context.Background()))
	_, ok = NewRegistry(&mockAuth{}, kv, Options{Clock: fc}).Lookup(context.Background(), res.Token)
	assert.False(t, ok)
}

func TestRegistry_UnknownToken(t *testing.T) {
	reg := NewRegistry(&mockAuth{}, store.NewLocal(time.Minute), Options{})
	_, ok := reg.Lookup(context.Background(), "")
	assert.False(t, ok)
	_, ok = reg.Lookup(context.Background(), "missing")
	assert.False(t, ok)
}

// gatedKV holds token-index reads until release is closed.
type gatedKV struct {
	store.KV
	indexKey string
	reads    atomic.Int32
	entered  chan struct{}
	release  chan struct{}
}

func (g *gatedKV) GetJSON(ctx context.Context, key string, dest any) error {
	if key == g.indexKey {
		if g.reads.Add(1) == 1 {
			close(g.entered)
		}
		<-g.release
	}
	return g.KV.GetJSON(ctx, key, dest)
}

func TestRegistry_ConcurrentRestoreSharesOneContext(t *testing.T) {
	kv := newRedisKV(t)

	first := NewRegistry(&mockAuth{}, kv, Options{Timeout: 10 * time.Minute, Clock: clockwork.NewFakeClock()})
	res, err := first.New().Login(context.Background(), "client@example.com", "password123")
	require.NoError(t, err)

	gated := &gatedKV{
		KV:       kv,
		indexKey: tokenIndexKey(res.Token),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	fc := clockwork.NewFakeClock()
	second := NewRegistry(&mockAuth{}, gated, Options{Timeout: 10 * time.Minute, Clock: fc})

	var (
		wg  sync.WaitGroup
		got [2]*Context
	)
	lookup := func(i int) {
		defer wg.Done()
		c, ok := second.Lookup(context.Background(), res.Token)
		assert.True(t, ok)
		got[i] = c
	}
	wg.Add(2)
	go lookup(0)
	<-gated.entered
	go lookup(1)
	time.Sleep(20 * time.Millisecond)
	close(gated.release)
	wg.Wait()

	require.NotNil(t, got[0])
	assert.Same(t, got[0], got[1])
	assert.Equal(t, int32(1), gated.reads.Load())

	// no second timer may clear the keys of the live session
	fc.Advance(9 * time.Minute)
	require.True(t, got[0].Touch(ActivityKeyPress))
	fc.Advance(2 * time.Minute)

	assert.Equal(t, Authenticated, got[0].State())
	user, err := got[0].Storage().User(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "CLIENT-001", user.UserID)
}
