package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/internal/store"
)

// Registry creates session contexts and maps bearer tokens back to them.
type Registry struct {
	auth Authenticator
	kv   store.KV
	opts Options

	mu            sync.RWMutex
	byToken       map[string]*Context
	pendingByUser map[string]*Context

	restores singleflight.Group
}

// NewRegistry returns a registry whose contexts store their keys in kv.
func NewRegistry(auth Authenticator, kv store.KV, opts Options) *Registry {
	return &Registry{
		auth:          auth,
		kv:            kv,
		opts:          opts.withDefaults(),
		byToken:       make(map[string]*Context),
		pendingByUser: make(map[string]*Context),
	}
}

// New returns a fresh anonymous context.
func (r *Registry) New() *Context {
	return r.newContext(uuid.NewString())
}

func (r *Registry) newContext(id string) *Context {
	return newContext(id, r.auth, NewStorage(r.kv, id, r.opts.StorageTTL), r.opts, r)
}

// Lookup finds the authenticated context for token. A token missing from
// memory but present in the store (for example after a restart) is restored.
// Concurrent lookups of one token share a single restore.
func (r *Registry) Lookup(ctx context.Context, token string) (*Context, bool) {
	if token == "" {
		return nil, false
	}
	if c, ok := r.bound(token); ok {
		return c, c.State() == Authenticated
	}

	v, _, _ := r.restores.Do(token, func() (any, error) {
		if c, ok := r.bound(token); ok {
			return c, nil
		}
		return r.restore(ctx, token), nil
	})
	c, _ := v.(*Context)
	if c == nil {
		return nil, false
	}
	return c, c.State() == Authenticated
}

func (r *Registry) bound(token string) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byToken[token]
	return c, ok
}

// restore rebuilds the context stored for token. Restore binds it on success.
func (r *Registry) restore(ctx context.Context, token string) *Context {
	sid, err := ContextIDForToken(ctx, r.kv, token)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.opts.Logger.Warn("session.lookup.failed", zap.Error(err))
		}
		return nil
	}
	c := r.newContext(sid)
	restored, err := c.Restore(ctx)
	if err != nil {
		r.opts.Logger.Warn("session.restore.failed", zap.String("session_id", sid), zap.Error(err))
		return nil
	}
	if !restored || c.Token() != token {
		return nil
	}
	return c
}

// PendingFor returns the context awaiting an MFA code for userID.
func (r *Registry) PendingFor(userID string) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.pendingByUser[userID]
	return c, ok
}

// Active returns the number of authenticated tokens.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

func (r *Registry) bind(token string, c *Context) {
	r.mu.Lock()
	r.byToken[token] = c
	n := len(r.byToken)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}

func (r *Registry) unbind(token string, c *Context) {
	r.mu.Lock()
	if cur, ok := r.byToken[token]; ok && cur == c {
		delete(r.byToken, token)
	}
	n := len(r.byToken)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}

func (r *Registry) awaitMFA(userID string, c *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingByUser[userID] = c
}

func (r *Registry) clearMFA(userID string, c *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.pendingByUser[userID]; ok && cur == c {
		delete(r.pendingByUser, userID)
	}
}
