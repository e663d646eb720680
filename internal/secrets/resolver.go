// Package secrets resolves the portal's runtime secrets.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/client-portal/pkg/secrets"
)

// SigningKeyField is the JSON field read from a structured secret.
const SigningKeyField = "signing_key"

// ErrNoSigningKey is returned when neither the secret store nor the fallback
// yields a key.
var ErrNoSigningKey = errors.New("no signing key configured")

// SigningKeyResolver fetches the token signing key from Secrets Manager,
// caching it locally, and falls back to a static key when no secret name is
// configured.
//
// Secret naming convention: {env}/client-portal/{name}, unless name already
// contains a slash.
type SigningKeyResolver struct {
	logger   *zap.Logger
	env      string
	name     string
	fallback string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[[]byte]
}

// NewSigningKeyResolver constructs a resolver. provider may be nil when name
// is empty.
func NewSigningKeyResolver(
	logger *zap.Logger,
	env string,
	name string,
	fallback string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[[]byte],
) *SigningKeyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SigningKeyResolver{
		logger:   logger,
		env:      env,
		name:     name,
		fallback: fallback,
		provider: provider,
		cache:    cache,
	}
}

// secretName builds the Secrets Manager key.
func (r *SigningKeyResolver) secretName() string {
	if strings.Contains(r.name, "/") {
		return r.name
	}
	return strings.ToLower(fmt.Sprintf("%s/client-portal/%s", r.env, r.name))
}

// Resolve returns the signing key.
func (r *SigningKeyResolver) Resolve(ctx context.Context) ([]byte, error) {
	if r.name == "" || r.provider == nil {
		if r.fallback == "" {
			return nil, ErrNoSigningKey
		}
		r.logger.Info("secrets.signing_key_fallback")
		return []byte(r.fallback), nil
	}

	secretName := r.secretName()
	if key, ok := r.cache.Get(secretName); ok {
		return key, nil
	}

	secretMap, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", secretName),
			zap.Error(err))
		return nil, fmt.Errorf("resolve signing key %q: %w", secretName, err)
	}

	value := secretMap[SigningKeyField]
	if value == "" {
		value = secretMap[pkgsecrets.PlainValueKey]
	}
	if value == "" {
		return nil, fmt.Errorf("parse secret %q: %w", secretName, ErrNoSigningKey)
	}

	key := []byte(value)
	r.cache.Put(secretName, key)

	r.logger.Info("aws.signing_key_resolved", zap.String("key", secretName))
	return key, nil
}

// Rotate drops the cached key so the next Resolve fetches it again.
func (r *SigningKeyResolver) Rotate() {
	if r.name != "" {
		r.cache.Bust(r.secretName())
	}
}
