// Package fixtures owns every source of randomness in the portal: seed data,
// generated identifiers and simulated status transitions all draw from a
// Generator so a fixed seed reproduces a run.
package fixtures

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator is a mutex-guarded seeded PRNG safe for concurrent use.
type Generator struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a generator whose sequence is fully determined by seed.
func New(seed int64) *Generator {
	s := uint64(seed)
	return &Generator{r: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

// IntN returns a value in [0, n). n <= 0 yields 0.
func (g *Generator) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.r.IntN(n)
}

// Float64 returns a value in [0, 1).
func (g *Generator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.r.Float64()
}

// Chance returns true with probability p.
func (g *Generator) Chance(p float64) bool {
	return g.Float64() < p
}

// DurationBetween returns a duration in [lo, hi]. hi <= lo yields lo.
func (g *Generator) DurationBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + time.Duration(g.r.Int64N(int64(hi-lo)+1))
}

// Number returns prefix followed by a value in [lo, hi].
func (g *Generator) Number(prefix string, lo, hi int) string {
	return fmt.Sprintf("%s%d", prefix, lo+g.IntN(hi-lo+1))
}

// Code returns prefix followed by n upper-case alphanumerics.
func (g *Generator) Code(prefix string, n int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	b.WriteString(prefix)
	for i := 0; i < n; i++ {
		b.WriteByte(codeAlphabet[g.r.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// Pick returns a random element of items. items must not be empty.
func Pick[T any](g *Generator, items []T) T {
	return items[g.IntN(len(items))]
}
