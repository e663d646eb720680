package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/pkg/model"
)

// TradeService defines the trade and instruction operations used by the handler.
type TradeService interface {
	GetTrades(ctx context.Context) ([]model.Trade, error)
	GetTrade(ctx context.Context, tradeID string) (model.Trade, error)
	CreateTrade(ctx context.Context, in model.NewTrade) (model.Trade, error)
	GetInstructions(ctx context.Context, filter model.InstructionFilter) ([]model.Instruction, error)
	GetInstruction(ctx context.Context, id string) (model.Instruction, error)
	GetInstructionStatus(ctx context.Context, id string) (model.InstructionStatusView, error)
	CreateInstruction(ctx context.Context, in model.NewInstruction) (model.Instruction, error)
}

// TradeHandler serves /api/trades and /api/instructions.
type TradeHandler struct {
	logger  *zap.Logger
	service TradeService
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(logger *zap.Logger, service TradeService) *TradeHandler {
	return &TradeHandler{logger: logger, service: service}
}

func (h *TradeHandler) ListTrades(c *fiber.Ctx) error {
	trades, err := h.service.GetTrades(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "get_trades", err)
	}
	return c.JSON(fiber.Map{"trades": trades})
}

func (h *TradeHandler) GetTrade(c *fiber.Ctx) error {
	t, err := h.service.GetTrade(c.UserContext(), c.Params("tradeId"))
	if err != nil {
		return writeError(c, h.logger, "get_trade", err)
	}
	return c.JSON(t)
}

// CreateTrade books a pending trade. clientId defaults to the caller.
func (h *TradeHandler) CreateTrade(c *fiber.Ctx) error {
	var req CreateTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.ClientID == "" {
		req.ClientID = userFrom(c).UserID
	}

	t, err := h.service.CreateTrade(c.UserContext(), req.toModel())
	if err != nil {
		return writeError(c, h.logger, "create_trade", err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// ListInstructions filters by clientId and status; both must match.
func (h *TradeHandler) ListInstructions(c *fiber.Ctx) error {
	filter := model.InstructionFilter{
		ClientID: c.Query("clientId"),
		Status:   model.InstructionStatus(c.Query("status")),
	}
	list, err := h.service.GetInstructions(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.logger, "get_instructions", err)
	}
	return c.JSON(fiber.Map{"instructions": list})
}

func (h *TradeHandler) GetInstruction(c *fiber.Ctx) error {
	ins, err := h.service.GetInstruction(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "get_instruction", err)
	}
	return c.JSON(ins)
}

func (h *TradeHandler) GetInstructionStatus(c *fiber.Ctx) error {
	st, err := h.service.GetInstructionStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "get_instruction_status", err)
	}
	return c.JSON(st)
}

// CreateInstruction submits a new instruction. clientId defaults to the caller.
func (h *TradeHandler) CreateInstruction(c *fiber.Ctx) error {
	var req CreateInstructionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if req.ClientID == "" {
		req.ClientID = userFrom(c).UserID
	}

	ins, err := h.service.CreateInstruction(c.UserContext(), req.toModel())
	if err != nil {
		return writeError(c, h.logger, "create_instruction", err)
	}
	return c.Status(fiber.StatusCreated).JSON(ins)
}
