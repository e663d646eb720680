package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/internal/trade"
	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

type mockAdvancer struct {
	mu    sync.Mutex
	calls map[string]model.InstructionStatus
	err   error
}

func (m *mockAdvancer) AdvanceInstruction(_ context.Context, id string, to model.InstructionStatus) (model.Instruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Instruction{}, m.err
	}
	if m.calls == nil {
		m.calls = map[string]model.InstructionStatus{}
	}
	m.calls[id] = to
	return model.Instruction{ID: id, Status: to}, nil
}

type staticLister []model.Instruction

func (s staticLister) List(_ context.Context, _ model.InstructionFilter) ([]model.Instruction, error) {
	return s, nil
}

func TestTick_AlwaysRulesAdvanceOneStep(t *testing.T) {
	list := staticLister{
		{ID: "INS-1", Status: model.InstructionSubmitted},
		{ID: "INS-2", Status: model.InstructionPending},
		{ID: "INS-3", Status: model.InstructionApproved},
		{ID: "INS-4", Status: model.InstructionCompleted},
		{ID: "INS-5", Status: model.InstructionRejected},
		{ID: "INS-6", Status: model.InstructionDraft},
	}
	rules := []Rule{
		{From: model.InstructionSubmitted, To: model.InstructionPending, P: 1},
		{From: model.InstructionPending, To: model.InstructionApproved, P: 1},
		{From: model.InstructionApproved, To: model.InstructionCompleted, P: 1},
	}
	adv := &mockAdvancer{}
	p := NewStatusProgressor(nil, list, adv, fixtures.New(1), nil, time.Second, rules)

	n, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, map[string]model.InstructionStatus{
		"INS-1": model.InstructionPending,
		"INS-2": model.InstructionApproved,
		"INS-3": model.InstructionCompleted,
	}, adv.calls)
}

func TestTick_ZeroProbabilityNeverAdvances(t *testing.T) {
	list := staticLister{{ID: "INS-1", Status: model.InstructionPending}}
	adv := &mockAdvancer{}
	p := NewStatusProgressor(nil, list, adv, fixtures.New(1), nil, time.Second,
		[]Rule{{From: model.InstructionPending, To: model.InstructionApproved, P: 0}})

	for i := 0; i < 20; i++ {
		n, err := p.Tick(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Empty(t, adv.calls)
}

func TestTick_AdvanceErrorsAreSkipped(t *testing.T) {
	list := staticLister{{ID: "INS-1", Status: model.InstructionSubmitted}}
	adv := &mockAdvancer{err: errors.New("boom")}
	p := NewStatusProgressor(nil, list, adv, fixtures.New(1), nil, time.Second,
		[]Rule{{From: model.InstructionSubmitted, To: model.InstructionPending, P: 1}})

	n, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTick_DefaultRulesOnlyMakeValidTransitions(t *testing.T) {
	now := time.Date(2024, 6, 14, 9, 30, 0, 0, time.UTC)
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	var mu sync.Mutex
	var events []model.InstructionStatusChanged
	eventbus.Subscribe(bus, func(e model.InstructionStatusChanged) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	instructions := repository.NewMemoryInstructions(fixtures.Instructions(now)...)
	svc := trade.NewService(trade.Deps{
		Instructions: instructions,
		Trades:       repository.NewMemoryTrades(),
		Audit:        repository.NewMemoryAudit(),
		Gen:          fixtures.New(7),
		Latency:      latency.Disabled(),
		Bus:          bus,
		Clock:        clockwork.NewFakeClockAt(now),
	})
	p := NewStatusProgressor(nil, instructions, svc, fixtures.New(42), nil, time.Second, nil)

	total := 0
	for i := 0; i < 30; i++ {
		n, err := p.Tick(context.Background())
		require.NoError(t, err)
		total += n
	}
	require.Positive(t, total)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == total
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, e := range events {
		assert.True(t, e.From.CanTransition(e.To), "%s -> %s", e.From, e.To)
	}
}

func TestStartStop_TicksOnClock(t *testing.T) {
	fc := clockwork.NewFakeClock()
	list := staticLister{{ID: "INS-1", Status: model.InstructionSubmitted}}
	adv := &mockAdvancer{}
	p := NewStatusProgressor(nil, list, adv, fixtures.New(1), fc, time.Minute,
		[]Rule{{From: model.InstructionSubmitted, To: model.InstructionPending, P: 1}})

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	fc.BlockUntil(1)
	fc.Advance(time.Minute)

	require.Eventually(t, func() bool {
		adv.mu.Lock()
		defer adv.mu.Unlock()
		return adv.calls["INS-1"] == model.InstructionPending
	}, time.Second, 10*time.Millisecond)

	p.Stop()
	p.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("progressor did not stop")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewStatusProgressor(nil, staticLister{}, &mockAdvancer{}, fixtures.New(1), clockwork.NewFakeClock(), time.Minute, nil)

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("progressor did not stop")
	}
}
