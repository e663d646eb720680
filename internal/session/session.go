// Package session implements the per-client session lifecycle: login, MFA
// verification, logout and inactivity expiry.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
	"github.com/Checker-Finance/client-portal/pkg/utils"
)

// DefaultTimeout is the inactivity window when none is configured.
const DefaultTimeout = 10 * time.Minute

const clearTimeout = 5 * time.Second

// State is the authentication state of a Context.
type State int

const (
	Anonymous State = iota
	AwaitingMFA
	Authenticated
)

func (s State) String() string {
	switch s {
	case AwaitingMFA:
		return "awaiting_mfa"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Authenticator checks credentials and issues tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (model.LoginResult, error)
	VerifyMFA(ctx context.Context, userID, code string) (model.MFAResult, error)
}

// Options configures a Context or Registry. Zero values get defaults.
type Options struct {
	Timeout    time.Duration
	StorageTTL time.Duration
	Clock      clockwork.Clock
	Bus        *eventbus.Bus
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// tracker is notified as a context gains and loses tokens. The Registry
// implements it; a standalone Context uses nopTracker.
type tracker interface {
	bind(token string, c *Context)
	unbind(token string, c *Context)
	awaitMFA(userID string, c *Context)
	clearMFA(userID string, c *Context)
}

type nopTracker struct{}

func (nopTracker) bind(string, *Context)     {}
func (nopTracker) unbind(string, *Context)   {}
func (nopTracker) awaitMFA(string, *Context) {}
func (nopTracker) clearMFA(string, *Context) {}

// Context holds the single current user of one client session.
type Context struct {
	id      string
	auth    Authenticator
	storage *Storage
	clock   clockwork.Clock
	timeout time.Duration
	bus     *eventbus.Bus
	logger  *zap.Logger
	tracker tracker

	mu       sync.Mutex
	state    State
	user     *model.User
	pending  *model.User
	token    string
	timer    clockwork.Timer
	gen      uint64
	deadline time.Time
}

// NewContext builds a standalone context. Call Restore to pick up a
// previously stored session.
func NewContext(id string, auth Authenticator, storage *Storage, opts Options) *Context {
	return newContext(id, auth, storage, opts.withDefaults(), nopTracker{})
}

func newContext(id string, auth Authenticator, storage *Storage, opts Options, t tracker) *Context {
	return &Context{
		id:      id,
		auth:    auth,
		storage: storage,
		clock:   opts.Clock,
		timeout: opts.Timeout,
		bus:     opts.Bus,
		logger:  opts.Logger.With(zap.String("session_id", id)),
		tracker: t,
	}
}

// ID returns the context id used to namespace its storage keys.
func (c *Context) ID() string { return c.id }

// Timeout returns the inactivity window.
func (c *Context) Timeout() time.Duration { return c.timeout }

// State returns the current state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns a copy of the authenticated user, or nil.
func (c *Context) User() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated || c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Token returns the authenticated session token, or "".
func (c *Context) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated {
		return ""
	}
	return c.token
}

// Deadline returns when the session expires without further activity.
func (c *Context) Deadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated {
		return time.Time{}, false
	}
	return c.deadline, true
}

// Storage exposes the durable keys of this context.
func (c *Context) Storage() *Storage { return c.storage }

// Login checks the credentials. Users without MFA become Authenticated and
// the inactivity timer starts; MFA users move to AwaitingMFA.
// A successful login replaces any session already held by the context.
func (c *Context) Login(ctx context.Context, email, password string) (model.LoginResult, error) {
	res, err := c.auth.Login(ctx, email, password)
	if err != nil {
		c.logger.Info("session.login.rejected", zap.String("email", utils.MaskEmail(email)))
		return model.LoginResult{}, err
	}

	now := c.clock.Now()
	c.mu.Lock()
	ended := c.endLocked(ctx, model.SessionLogout, now)
	if res.RequiresMFA {
		u := res.User
		c.state = AwaitingMFA
		c.pending = &u
		c.mu.Unlock()

		c.stopTimer(ended)
		c.tracker.awaitMFA(u.UserID, c)
		c.logger.Info("session.awaiting_mfa", zap.String("user_id", u.UserID))
		return res, nil
	}

	if err := c.authenticateLocked(ctx, res.User, res.Token); err != nil {
		c.mu.Unlock()
		c.stopTimer(ended)
		return model.LoginResult{}, err
	}
	gen := c.gen
	c.mu.Unlock()

	c.stopTimer(ended)
	c.tracker.bind(res.Token, c)
	c.arm(gen)
	c.logger.Info("session.authenticated", zap.String("user_id", res.User.UserID), zap.String("via", "password"))
	return res, nil
}

// VerifyMFA completes a login that is awaiting its second factor. A wrong
// code ends the pending session.
func (c *Context) VerifyMFA(ctx context.Context, userID, code string) (model.MFAResult, error) {
	c.mu.Lock()
	if c.state != AwaitingMFA || c.pending == nil || c.pending.UserID != userID {
		c.mu.Unlock()
		return model.MFAResult{}, apperr.Unauthorized("no pending MFA challenge")
	}
	gen := c.gen
	c.mu.Unlock()

	res, err := c.auth.VerifyMFA(ctx, userID, code)
	now := c.clock.Now()

	c.mu.Lock()
	if c.gen != gen || c.state != AwaitingMFA {
		c.mu.Unlock()
		return model.MFAResult{}, apperr.Unauthorized("MFA challenge is no longer pending")
	}
	if err != nil {
		if !errors.Is(err, apperr.ErrInvalidMFACode) {
			c.mu.Unlock()
			return model.MFAResult{}, err
		}
		c.endLocked(ctx, model.SessionMFAFailed, now)
		c.mu.Unlock()
		return model.MFAResult{}, err
	}
	if err := c.authenticateLocked(ctx, res.User, res.Token); err != nil {
		c.mu.Unlock()
		return model.MFAResult{}, err
	}
	gen = c.gen
	c.mu.Unlock()

	c.tracker.clearMFA(userID, c)
	c.tracker.bind(res.Token, c)
	c.arm(gen)
	c.logger.Info("session.authenticated", zap.String("user_id", userID), zap.String("via", "mfa"))
	return res, nil
}

// Logout ends the session. Calling it on an anonymous context is a no-op.
func (c *Context) Logout(ctx context.Context) error {
	now := c.clock.Now()
	c.mu.Lock()
	if c.state == Anonymous {
		c.mu.Unlock()
		return nil
	}
	t := c.endLocked(ctx, model.SessionLogout, now)
	c.mu.Unlock()

	c.stopTimer(t)
	return nil
}

// Touch records user activity and restarts the inactivity countdown.
// It reports false when there is no authenticated session to refresh.
func (c *Context) Touch(a Activity) bool {
	c.mu.Lock()
	if c.state != Authenticated {
		c.mu.Unlock()
		return false
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.arm(gen)
	if a != ActivityRequest {
		c.logger.Debug("session.activity", zap.String("kind", string(a)))
	}
	return true
}

// Restore loads a previously stored user and token. It reports whether a
// session was restored.
func (c *Context) Restore(ctx context.Context) (bool, error) {
	user, err := c.storage.User(ctx)
	if err != nil {
		return false, err
	}
	token, err := c.storage.Token(ctx)
	if err != nil {
		return false, err
	}
	if user == nil || token == "" {
		return false, nil
	}

	c.mu.Lock()
	if c.state != Anonymous {
		st := c.state
		c.mu.Unlock()
		return st == Authenticated, nil
	}
	c.state = Authenticated
	c.user = user
	c.token = token
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.tracker.bind(token, c)
	c.arm(gen)
	c.logger.Info("session.restored", zap.String("user_id", user.UserID))
	return true, nil
}

// authenticateLocked persists the user and token and moves to
// Authenticated. The caller arms the timer after unlocking.
func (c *Context) authenticateLocked(ctx context.Context, user model.User, token string) error {
	if err := c.storage.Save(ctx, token, user); err != nil {
		c.logger.Error("session.storage.save_failed", zap.Error(err))
		return err
	}
	c.state = Authenticated
	c.user = &user
	c.pending = nil
	c.token = token
	c.gen++
	return nil
}

// endLocked returns the context to Anonymous and reports the timer that
// should be stopped once the lock is released. It is a no-op when already
// anonymous.
func (c *Context) endLocked(ctx context.Context, reason model.SessionEndReason, now time.Time) clockwork.Timer {
	if c.state == Anonymous {
		return nil
	}

	prev := c.state
	token := c.token
	userID := ""
	switch {
	case c.user != nil:
		userID = c.user.UserID
	case c.pending != nil:
		userID = c.pending.UserID
	}

	t := c.timer
	c.timer = nil
	c.gen++
	c.state = Anonymous
	c.user = nil
	c.pending = nil
	c.token = ""
	c.deadline = time.Time{}

	if prev == Authenticated {
		if err := c.storage.Clear(ctx); err != nil {
			c.logger.Warn("session.storage.clear_failed", zap.Error(err))
		}
		c.tracker.unbind(token, c)
	} else {
		c.tracker.clearMFA(userID, c)
	}

	metrics.IncSessionEnded(string(reason))
	c.logger.Info("session.ended", zap.String("user_id", userID), zap.String("reason", string(reason)))
	if c.bus != nil {
		c.bus.Publish(model.SessionEnded{
			SessionID: c.id,
			UserID:    userID,
			Reason:    reason,
			Timestamp: now.UTC(),
		})
	}
	return t
}

// arm replaces the inactivity timer for generation gen. It must be called
// without c.mu held.
func (c *Context) arm(gen uint64) {
	deadline := c.clock.Now().Add(c.timeout)
	t := c.clock.AfterFunc(c.timeout, func() { c.expire(gen) })

	c.mu.Lock()
	if c.gen != gen || c.state != Authenticated {
		c.mu.Unlock()
		t.Stop()
		return
	}
	old := c.timer
	c.timer = t
	c.deadline = deadline
	c.mu.Unlock()

	c.stopTimer(old)
}

func (c *Context) stopTimer(t clockwork.Timer) {
	if t != nil {
		t.Stop()
	}
}

// expire runs on the timer. A stale generation means the session was
// refreshed or ended after this timer was armed. It must not call the clock:
// a fake clock may run it while holding its own lock.
func (c *Context) expire(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != Authenticated {
		return
	}
	c.logger.Info("session.expired", zap.Duration("timeout", c.timeout))
	c.endLocked(ctx, model.SessionTimeout, c.deadline)
}
