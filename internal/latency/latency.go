// Package latency simulates request/response delay in front of in-memory services.
package latency

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Checker-Finance/client-portal/internal/fixtures"
)

// Simulator waits a random duration in [Min, Max] before a service resolves.
// A zero Max disables the delay.
type Simulator struct {
	Min   time.Duration
	Max   time.Duration
	gen   *fixtures.Generator
	clock clockwork.Clock
}

// New builds a simulator drawing delays from gen and sleeping on clock.
func New(lo, hi time.Duration, gen *fixtures.Generator, clock clockwork.Clock) *Simulator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Simulator{Min: lo, Max: hi, gen: gen, clock: clock}
}

// Disabled returns a simulator that never waits.
func Disabled() *Simulator {
	return &Simulator{}
}

// Wait blocks for the simulated delay or until ctx is done.
func (s *Simulator) Wait(ctx context.Context) error {
	if s == nil || s.Max <= 0 || s.gen == nil {
		return ctx.Err()
	}
	d := s.gen.DurationBetween(s.Min, s.Max)
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-s.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
