// Package jobs holds the portal's background workers.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// InstructionLister lists instructions by filter.
type InstructionLister interface {
	List(ctx context.Context, filter model.InstructionFilter) ([]model.Instruction, error)
}

// Advancer applies one validated status transition.
type Advancer interface {
	AdvanceInstruction(ctx context.Context, id string, to model.InstructionStatus) (model.Instruction, error)
}

// Rule moves instructions in From to To with probability P on each tick.
type Rule struct {
	From model.InstructionStatus
	To   model.InstructionStatus
	P    float64
}

// DefaultRules walk submitted instructions through review to completion.
var DefaultRules = []Rule{
	{From: model.InstructionSubmitted, To: model.InstructionPending, P: 0.5},
	{From: model.InstructionPending, To: model.InstructionApproved, P: 0.3},
	{From: model.InstructionApproved, To: model.InstructionCompleted, P: 0.2},
}

// StatusProgressor is the server-side authority for instruction status
// changes. Each tick advances every eligible instruction at most one step.
type StatusProgressor struct {
	logger   *zap.Logger
	lister   InstructionLister
	advancer Advancer
	gen      *fixtures.Generator
	clock    clockwork.Clock
	rules    map[model.InstructionStatus]Rule
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewStatusProgressor constructs the progression job. A nil rules slice uses
// DefaultRules.
func NewStatusProgressor(logger *zap.Logger, lister InstructionLister, advancer Advancer, gen *fixtures.Generator, clock clockwork.Clock, interval time.Duration, rules []Rule) *StatusProgressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rules == nil {
		rules = DefaultRules
	}
	byFrom := make(map[model.InstructionStatus]Rule, len(rules))
	for _, r := range rules {
		byFrom[r.From] = r
	}
	return &StatusProgressor{
		logger:   logger,
		lister:   lister,
		advancer: advancer,
		gen:      gen,
		clock:    clock,
		rules:    byFrom,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (p *StatusProgressor) Start(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("status_progressor.started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ticker.Chan():
			if _, err := p.Tick(ctx); err != nil {
				p.logger.Warn("status_progressor.tick_failed", zap.Error(err))
			}
		case <-p.stopCh:
			p.logger.Info("status_progressor.stopped (manual stop)")
			return
		case <-ctx.Done():
			p.logger.Info("status_progressor.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the loop. It is safe to call more than once.
func (p *StatusProgressor) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Tick runs one progression cycle and returns the number of transitions.
func (p *StatusProgressor) Tick(ctx context.Context) (int, error) {
	all, err := p.lister.List(ctx, model.InstructionFilter{})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, ins := range all {
		rule, ok := p.rules[ins.Status]
		if !ok || !p.gen.Chance(rule.P) {
			continue
		}
		if _, err := p.advancer.AdvanceInstruction(ctx, ins.ID, rule.To); err != nil {
			// a concurrent change may have moved it already
			p.logger.Debug("status_progressor.advance_skipped",
				zap.String("instruction_id", ins.ID),
				zap.Error(err))
			continue
		}
		moved++
	}
	if moved > 0 {
		p.logger.Info("status_progressor.tick", zap.Int("advanced", moved))
	}
	return moved, nil
}
