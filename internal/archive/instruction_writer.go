// Package archive keeps a durable copy of instructions and their status
// history in Postgres.
package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaQuery = `
	CREATE SCHEMA IF NOT EXISTS portal;

	CREATE TABLE IF NOT EXISTS portal.t_instruction (
		s_id_instruction TEXT PRIMARY KEY,
		s_id_client      TEXT NOT NULL,
		s_type           TEXT NOT NULL,
		s_isin           TEXT NOT NULL,
		dec_quantity     NUMERIC NOT NULL,
		dec_price        NUMERIC,
		s_status         TEXT NOT NULL,
		dt_created       TIMESTAMPTZ NOT NULL,
		dt_updated       TIMESTAMPTZ NOT NULL,
		s_source         TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS portal.t_instruction_status_history (
		s_id_instruction TEXT NOT NULL,
		s_status_from    TEXT NOT NULL,
		s_status_to      TEXT NOT NULL,
		dt_changed       TIMESTAMPTZ NOT NULL,
		s_source         TEXT NOT NULL,
		PRIMARY KEY (s_id_instruction, s_status_to, dt_changed)
	);
`

const upsertInstructionQuery = `
	INSERT INTO portal.t_instruction (
		s_id_instruction,
		s_id_client,
		s_type,
		s_isin,
		dec_quantity,
		dec_price,
		s_status,
		dt_created,
		dt_updated,
		s_source
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (s_id_instruction)
	DO UPDATE SET
		s_status = EXCLUDED.s_status,
		dec_price = EXCLUDED.dec_price,
		dec_quantity = EXCLUDED.dec_quantity,
		dt_updated = EXCLUDED.dt_updated,
		s_source = EXCLUDED.s_source;
`

const insertTransitionQuery = `
	INSERT INTO portal.t_instruction_status_history (
		s_id_instruction,
		s_status_from,
		s_status_to,
		dt_changed,
		s_source
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT DO NOTHING;
`

const updateStatusQuery = `
	UPDATE portal.t_instruction
	SET s_status = $2, dt_updated = $3
	WHERE s_id_instruction = $1;
`

// InstructionWriter mirrors instruction events into the archive tables.
type InstructionWriter struct {
	db      Execer
	logger  *zap.Logger
	source  string
	timeout time.Duration
	unsubs  []func()
}

// NewInstructionWriter constructs a writer. source identifies the process
// writing the rows (e.g. "client-portal").
func NewInstructionWriter(db Execer, logger *zap.Logger, source string) *InstructionWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructionWriter{
		db:      db,
		logger:  logger,
		source:  source,
		timeout: 5 * time.Second,
	}
}

// EnsureSchema creates the archive tables when missing.
func (w *InstructionWriter) EnsureSchema(ctx context.Context) error {
	_, err := w.db.Exec(ctx, schemaQuery)
	return err
}

// UpsertInstruction inserts or refreshes the instruction row.
func (w *InstructionWriter) UpsertInstruction(ctx context.Context, ins model.Instruction) error {
	var price any
	if ins.Price != nil {
		price = ins.Price.String()
	}

	_, err := w.db.Exec(ctx, upsertInstructionQuery,
		ins.ID,
		ins.ClientID,
		string(ins.Type),
		ins.ISIN,
		ins.Quantity.String(),
		price,
		string(ins.Status),
		ins.CreatedAt,
		ins.UpdatedAt,
		w.source,
	)
	if err != nil {
		w.logger.Error("archive.instruction_upsert_failed",
			zap.String("instruction_id", ins.ID),
			zap.String("client_id", ins.ClientID),
			zap.Error(err))
		return err
	}

	w.logger.Debug("archive.instruction_upsert",
		zap.String("instruction_id", ins.ID),
		zap.String("status", string(ins.Status)))
	return nil
}

// RecordTransition appends one status change and moves the instruction row.
func (w *InstructionWriter) RecordTransition(ctx context.Context, e model.InstructionStatusChanged) error {
	_, err := w.db.Exec(ctx, insertTransitionQuery,
		e.InstructionID,
		string(e.From),
		string(e.To),
		e.Timestamp,
		w.source,
	)
	if err == nil {
		_, err = w.db.Exec(ctx, updateStatusQuery, e.InstructionID, string(e.To), e.Timestamp)
	}
	if err != nil {
		w.logger.Error("archive.transition_failed",
			zap.String("instruction_id", e.InstructionID),
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)),
			zap.Error(err))
		return err
	}
	return nil
}

// Subscribe mirrors InstructionCreated and InstructionStatusChanged from bus.
func (w *InstructionWriter) Subscribe(bus *eventbus.Bus) {
	w.unsubs = append(w.unsubs,
		eventbus.Subscribe(bus, func(e model.InstructionCreated) {
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			defer cancel()
			_ = w.UpsertInstruction(ctx, e.Instruction)
		}),
		eventbus.Subscribe(bus, func(e model.InstructionStatusChanged) {
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			defer cancel()
			_ = w.RecordTransition(ctx, e)
		}),
	)
}

// Close stops mirroring.
func (w *InstructionWriter) Close() {
	for _, u := range w.unsubs {
		u()
	}
	w.unsubs = nil
}
