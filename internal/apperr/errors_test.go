package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("trade lookup: %w", NotFound("trade %s not found", "TRD-9999"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "trade TRD-9999 not found", Message(err))
}

func TestMessage_GenericFallback(t *testing.T) {
	assert.Equal(t, "operation failed", Message(errors.New("connection reset")))
}

func TestEachConstructorCarriesItsKind(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{InvalidInput("isin is required"), ErrInvalidInput},
		{InvalidCredentials("invalid email or password"), ErrInvalidCredentials},
		{InvalidMFACode("invalid mfa code"), ErrInvalidMFACode},
		{Unauthorized("session expired"), ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
		})
	}
}
