// Package trade manages trades and client trade instructions, including the
// server-side instruction status lifecycle.
package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// SettlementLag is the T+2 settlement offset applied to new trades.
const SettlementLag = 48 * time.Hour

const (
	idAttempts = 5
	systemUser = "system"
)

// Deps groups the collaborators of Service.
type Deps struct {
	Instructions repository.InstructionRepository
	Trades       repository.TradeRepository
	Audit        repository.AuditRepository
	Gen          *fixtures.Generator
	Latency      *latency.Simulator
	Bus          *eventbus.Bus
	Clock        clockwork.Clock
	Logger       *zap.Logger
}

// Service implements trade and instruction operations.
type Service struct {
	instructions repository.InstructionRepository
	trades       repository.TradeRepository
	audit        repository.AuditRepository
	gen          *fixtures.Generator
	latency      *latency.Simulator
	bus          *eventbus.Bus
	clock        clockwork.Clock
	logger       *zap.Logger
}

// NewService wires the trade service.
func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		instructions: d.Instructions,
		trades:       d.Trades,
		audit:        d.Audit,
		gen:          d.Gen,
		latency:      d.Latency,
		bus:          d.Bus,
		clock:        d.Clock,
		logger:       d.Logger,
	}
}

func (s *Service) wait(ctx context.Context, op string) (func(), error) {
	start := time.Now()
	done := func() { metrics.ObserveDuration(metrics.ServiceDuration, start, "trade", op) }
	return done, s.latency.Wait(ctx)
}

func (s *Service) publish(event any) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}

// ─── Trades ───

// GetTrades returns all trades, newest first.
func (s *Service) GetTrades(ctx context.Context) ([]model.Trade, error) {
	done, err := s.wait(ctx, "get_trades")
	defer done()
	if err != nil {
		return nil, err
	}
	return s.trades.List(ctx)
}

// GetTrade returns one trade or a NotFound error.
func (s *Service) GetTrade(ctx context.Context, tradeID string) (model.Trade, error) {
	done, err := s.wait(ctx, "get_trade")
	defer done()
	if err != nil {
		return model.Trade{}, err
	}
	return s.trades.Get(ctx, tradeID)
}

// CreateTrade books a pending trade dated now.
func (s *Service) CreateTrade(ctx context.Context, in model.NewTrade) (model.Trade, error) {
	done, err := s.wait(ctx, "create_trade")
	defer done()
	if err != nil {
		return model.Trade{}, err
	}
	if strings.TrimSpace(in.Instrument) == "" && strings.TrimSpace(in.ISIN) == "" {
		return model.Trade{}, apperr.InvalidInput("instrument or isin is required")
	}
	if !in.Quantity.IsPositive() {
		return model.Trade{}, apperr.InvalidInput("quantity must be positive")
	}
	if in.Price.IsNegative() {
		return model.Trade{}, apperr.InvalidInput("price must not be negative")
	}

	now := s.clock.Now().UTC()
	settle := now.Add(SettlementLag)
	t := model.Trade{
		ClientID:       in.ClientID,
		Instrument:     in.Instrument,
		ISIN:           in.ISIN,
		Quantity:       in.Quantity,
		Price:          in.Price,
		Status:         model.TradePending,
		TradeDate:      now,
		SettlementDate: &settle,
	}

	err = s.createWithID(func() error {
		t.TradeID = s.gen.Number("TRD-", 10000, 99999)
		return s.trades.Create(ctx, t)
	})
	if err != nil {
		s.logger.Error("trade.create_trade.failed", zap.Error(err))
		return model.Trade{}, err
	}

	s.logger.Info("trade.created", zap.String("trade_id", t.TradeID), zap.String("client_id", t.ClientID))
	s.publish(model.TradeCreated{Trade: t.Clone(), Timestamp: now})
	return t, nil
}

// createWithID retries create while the generated id collides.
func (s *Service) createWithID(create func() error) error {
	var err error
	for range idAttempts {
		if err = create(); !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return fmt.Errorf("no free id after %d attempts: %w", idAttempts, err)
}

// ─── Instructions ───

// GetInstructions returns instructions matching every set field of filter.
func (s *Service) GetInstructions(ctx context.Context, filter model.InstructionFilter) ([]model.Instruction, error) {
	done, err := s.wait(ctx, "get_instructions")
	defer done()
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.InvalidInput("unknown status %q", filter.Status)
	}
	return s.instructions.List(ctx, filter)
}

// GetInstruction returns one instruction by id or instructionId.
func (s *Service) GetInstruction(ctx context.Context, id string) (model.Instruction, error) {
	done, err := s.wait(ctx, "get_instruction")
	defer done()
	if err != nil {
		return model.Instruction{}, err
	}
	return s.instructions.Get(ctx, id)
}

// GetInstructionStatus returns the status projection of one instruction.
func (s *Service) GetInstructionStatus(ctx context.Context, id string) (model.InstructionStatusView, error) {
	done, err := s.wait(ctx, "get_instruction_status")
	defer done()
	if err != nil {
		return model.InstructionStatusView{}, err
	}
	ins, err := s.instructions.Get(ctx, id)
	if err != nil {
		return model.InstructionStatusView{}, err
	}
	return model.InstructionStatusView{
		InstructionID: ins.InstructionID,
		Status:        ins.Status,
		UpdatedAt:     ins.UpdatedAt,
	}, nil
}

// CreateInstruction submits a new instruction. It is stored first in the
// listing with status submitted.
func (s *Service) CreateInstruction(ctx context.Context, in model.NewInstruction) (model.Instruction, error) {
	done, err := s.wait(ctx, "create_instruction")
	defer done()
	if err != nil {
		return model.Instruction{}, err
	}
	if strings.TrimSpace(in.ISIN) == "" {
		return model.Instruction{}, apperr.InvalidInput("isin is required")
	}
	if !in.Quantity.IsPositive() {
		return model.Instruction{}, apperr.InvalidInput("quantity must be positive")
	}
	if !in.Type.Valid() {
		return model.Instruction{}, apperr.InvalidInput("type must be one of buy, sell, transfer")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return model.Instruction{}, apperr.InvalidInput("price must not be negative")
	}

	now := s.clock.Now().UTC()
	ins := model.Instruction{
		ClientID:  in.ClientID,
		Type:      in.Type,
		ISIN:      strings.TrimSpace(in.ISIN),
		Quantity:  in.Quantity,
		Price:     in.Price,
		Status:    model.InstructionSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.createWithID(func() error {
		id := s.gen.Number("INS-", 10000, 99999)
		ins.ID, ins.InstructionID = id, id
		return s.instructions.Create(ctx, ins)
	})
	if err != nil {
		s.logger.Error("trade.create_instruction.failed", zap.Error(err))
		return model.Instruction{}, err
	}

	actor := actorFor(ins.ClientID)
	s.record(ctx,
		s.gen.AuditEntry(now, ins.ID, "CREATE", "Instruction created", actor),
		s.gen.AuditEntry(now, ins.ID, "SUBMIT", "Instruction submitted for review", actor),
	)

	s.logger.Info("trade.instruction.created",
		zap.String("instruction_id", ins.ID),
		zap.String("client_id", ins.ClientID),
		zap.String("type", string(ins.Type)),
	)
	s.publish(model.InstructionCreated{Instruction: ins.Clone(), Timestamp: now})
	return ins, nil
}

// AdvanceInstruction moves an instruction to status to. Transitions outside
// the lifecycle graph are rejected with InvalidInput.
func (s *Service) AdvanceInstruction(ctx context.Context, id string, to model.InstructionStatus) (model.Instruction, error) {
	if !to.Valid() {
		return model.Instruction{}, apperr.InvalidInput("unknown status %q", to)
	}
	now := s.clock.Now().UTC()

	var from model.InstructionStatus
	updated, err := s.instructions.Update(ctx, id, func(ins *model.Instruction) error {
		if !ins.Status.CanTransition(to) {
			return apperr.InvalidInput("cannot move instruction from %s to %s", ins.Status, to)
		}
		from = ins.Status
		ins.Status = to
		ins.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Instruction{}, err
	}

	metrics.IncTransition(string(from), string(to))
	s.record(ctx, s.gen.AuditEntry(now, updated.ID, strings.ToUpper(string(to)),
		fmt.Sprintf("Status changed from %s to %s", from, to), systemUser))
	s.logger.Info("trade.instruction.status_changed",
		zap.String("instruction_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.publish(model.InstructionStatusChanged{
		InstructionID: updated.ID,
		ClientID:      updated.ClientID,
		From:          from,
		To:            to,
		Timestamp:     now,
	})
	return updated, nil
}

// record appends audit entries stamped now. Failures are logged only.
func (s *Service) record(ctx context.Context, entries ...model.AuditLogEntry) {
	if s.audit == nil {
		return
	}
	now := s.clock.Now().UTC()
	for i := range entries {
		entries[i].Timestamp = now
	}
	if err := s.audit.Append(ctx, entries...); err != nil {
		s.logger.Warn("trade.audit.append_failed", zap.Error(err))
	}
}

func actorFor(clientID string) string {
	if clientID == "" {
		return systemUser
	}
	return clientID
}
