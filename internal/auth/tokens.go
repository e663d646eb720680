package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Token stages. A pending token proves the password step only.
const (
	StagePending = "mfa_pending"
	StageSession = "session"
)

// DefaultTokenTTL bounds a token's life independently of session inactivity.
const DefaultTokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Claims are carried by every portal token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
	Stage string `json:"stage"`
}

// TokenIssuer signs and validates HS256 session tokens.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewTokenIssuer returns an issuer signing with key.
func NewTokenIssuer(key []byte, issuer string, ttl time.Duration, clock clockwork.Clock) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("jwt signing key is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenIssuer{key: key, issuer: issuer, ttl: ttl, clock: clock}, nil
}

// Issue signs a token for user. Every call gets a new jti, so tokens are
// never reused.
func (t *TokenIssuer) Issue(user model.User, stage string) (string, error) {
	now := t.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
		Email: user.Email,
		Role:  user.Role,
		Stage: stage,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.key)
}

// Parse validates the signature, issuer and expiry of token.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.key, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
