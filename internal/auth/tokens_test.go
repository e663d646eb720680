package auth

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/client-portal/pkg/model"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer([]byte("k"), "client-portal", time.Hour, nil)
	require.NoError(t, err)

	u := model.User{UserID: "CLIENT-001", Email: "client@example.com", Role: "client"}
	tok, err := issuer.Issue(u, StageSession)
	require.NoError(t, err)

	claims, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "CLIENT-001", claims.Subject)
	assert.Equal(t, "client@example.com", claims.Email)
	assert.Equal(t, "client", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	fc := clockwork.NewFakeClock()
	issuer, err := NewTokenIssuer([]byte("k"), "client-portal", time.Minute, fc)
	require.NoError(t, err)
	tok, err := issuer.Issue(model.User{UserID: "CLIENT-001"}, StageSession)
	require.NoError(t, err)

	other, err := NewTokenIssuer([]byte("other"), "client-portal", time.Minute, fc)
	require.NoError(t, err)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewTokenIssuer([]byte("k"), "someone-else", time.Minute, fc)
	require.NoError(t, err)
	_, err = wrongIssuer.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	fc.Advance(2 * time.Minute)
	_, err = issuer.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_RequiresKey(t *testing.T) {
	_, err := NewTokenIssuer(nil, "x", time.Minute, nil)
	assert.Error(t, err)
}
