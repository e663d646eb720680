package archive

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

type execCall struct {
	sql  string
	args []any
}

type mockExecer struct {
	mu    sync.Mutex
	calls []execCall
	err   error
}

func (m *mockExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, execCall{sql: sql, args: args})
	if m.err != nil {
		return pgconn.CommandTag{}, m.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockExecer) snapshot() []execCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]execCall(nil), m.calls...)
}

func TestQueries_TargetArchiveTables(t *testing.T) {
	assert.Contains(t, schemaQuery, "portal.t_instruction_status_history")
	assert.Contains(t, upsertInstructionQuery, "ON CONFLICT (s_id_instruction)")
	assert.Contains(t, insertTransitionQuery, "ON CONFLICT DO NOTHING")
	assert.True(t, strings.Contains(updateStatusQuery, "WHERE s_id_instruction = $1"))
}

func TestUpsertInstruction_Args(t *testing.T) {
	db := &mockExecer{}
	w := NewInstructionWriter(db, nil, "client-portal")
	price := decimal.RequireFromString("25.5")
	now := time.Date(2024, 6, 14, 9, 30, 0, 0, time.UTC)

	err := w.UpsertInstruction(context.Background(), model.Instruction{
		ID: "INS-12345", ClientID: "CLIENT-001", Type: model.InstructionBuy, ISIN: "NGZENITHBNK9",
		Quantity: decimal.NewFromInt(5000), Price: &price, Status: model.InstructionSubmitted,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	calls := db.snapshot()
	require.Len(t, calls, 1)
	args := calls[0].args
	require.Len(t, args, 10)
	assert.Equal(t, "INS-12345", args[0])
	assert.Equal(t, "5000", args[4])
	assert.Equal(t, "25.5", args[5])
	assert.Equal(t, "submitted", args[6])
	assert.Equal(t, "client-portal", args[9])
}

func TestUpsertInstruction_NilPrice(t *testing.T) {
	db := &mockExecer{}
	w := NewInstructionWriter(db, nil, "client-portal")

	require.NoError(t, w.UpsertInstruction(context.Background(), model.Instruction{ID: "INS-1", Type: model.InstructionTransfer}))
	assert.Nil(t, db.snapshot()[0].args[5])
}

func TestRecordTransition_InsertsThenUpdates(t *testing.T) {
	db := &mockExecer{}
	w := NewInstructionWriter(db, nil, "client-portal")

	err := w.RecordTransition(context.Background(), model.InstructionStatusChanged{
		InstructionID: "INS-10002", From: model.InstructionPending, To: model.InstructionApproved, Timestamp: time.Now(),
	})
	require.NoError(t, err)

	calls := db.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, insertTransitionQuery, calls[0].sql)
	assert.Equal(t, updateStatusQuery, calls[1].sql)
	assert.Equal(t, "approved", calls[1].args[1])
}

func TestRecordTransition_StopsOnError(t *testing.T) {
	db := &mockExecer{err: errors.New("connection refused")}
	w := NewInstructionWriter(db, nil, "client-portal")

	err := w.RecordTransition(context.Background(), model.InstructionStatusChanged{InstructionID: "INS-1"})
	assert.Error(t, err)
	assert.Len(t, db.snapshot(), 1)
}

func TestSubscribe_MirrorsBusEvents(t *testing.T) {
	bus := eventbus.New()
	t.Cleanup(bus.Close)
	db := &mockExecer{}
	w := NewInstructionWriter(db, nil, "client-portal")
	w.Subscribe(bus)

	bus.Publish(model.InstructionCreated{Instruction: model.Instruction{ID: "INS-1", Status: model.InstructionSubmitted}})
	bus.Publish(model.InstructionStatusChanged{InstructionID: "INS-1", From: model.InstructionSubmitted, To: model.InstructionPending})

	require.Eventually(t, func() bool { return len(db.snapshot()) == 3 }, time.Second, 5*time.Millisecond)

	w.Close()
	bus.PublishSync(model.InstructionCreated{Instruction: model.Instruction{ID: "INS-2"}})
	assert.Len(t, db.snapshot(), 3)
}

func TestEnsureSchema(t *testing.T) {
	db := &mockExecer{}
	require.NoError(t, NewInstructionWriter(db, nil, "client-portal").EnsureSchema(context.Background()))
	assert.Equal(t, schemaQuery, db.snapshot()[0].sql)
}
