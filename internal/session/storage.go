package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Checker-Finance/client-portal/internal/store"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Storage keys. Each context namespaces them under its own id.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

const keyPrefix = "portal:session:"

// Storage is the durable token/user store of one session context.
type Storage struct {
	kv  store.KV
	sid string
	ttl time.Duration
}

// NewStorage scopes kv to the context sid. ttl bounds how long orphaned keys
// survive a crashed process; zero keeps them until cleared.
func NewStorage(kv store.KV, sid string, ttl time.Duration) *Storage {
	return &Storage{kv: kv, sid: sid, ttl: ttl}
}

func (s *Storage) key(name string) string {
	return keyPrefix + s.sid + ":" + name
}

func tokenIndexKey(token string) string {
	return keyPrefix + "by-token:" + token
}

// Save writes the token and user, and indexes the token back to this context.
func (s *Storage) Save(ctx context.Context, token string, user model.User) error {
	if err := s.kv.SetJSON(ctx, s.key(KeyToken), token, s.ttl); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := s.kv.SetJSON(ctx, s.key(KeyUser), user, s.ttl); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if err := s.kv.SetJSON(ctx, tokenIndexKey(token), s.sid, s.ttl); err != nil {
		return fmt.Errorf("index token: %w", err)
	}
	return nil
}

// Clear removes both keys and the token index entry.
func (s *Storage) Clear(ctx context.Context) error {
	keys := []string{s.key(KeyToken), s.key(KeyUser)}
	if tok, err := s.Token(ctx); err == nil && tok != "" {
		keys = append(keys, tokenIndexKey(tok))
	}
	return s.kv.Delete(ctx, keys...)
}

// User returns the stored user, or nil when none is stored.
func (s *Storage) User(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := s.kv.GetJSON(ctx, s.key(KeyUser), &u); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Token returns the stored token, or "" when none is stored.
func (s *Storage) Token(ctx context.Context) (string, error) {
	var tok string
	if err := s.kv.GetJSON(ctx, s.key(KeyToken), &tok); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return tok, nil
}

// ContextIDForToken resolves a token to the context that stored it.
func ContextIDForToken(ctx context.Context, kv store.KV, token string) (string, error) {
	var sid string
	if err := kv.GetJSON(ctx, tokenIndexKey(token), &sid); err != nil {
		return "", err
	}
	return sid, nil
}
