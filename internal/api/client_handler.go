package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/pkg/model"
)

// ClientService defines the client operations used by the handler.
type ClientService interface {
	GetClients(ctx context.Context) ([]model.Client, error)
	GetClient(ctx context.Context, clientID string) (model.Client, error)
	UpdateClient(ctx context.Context, clientID string, patch model.ClientPatch) (model.Client, error)
	GetPortfolio(ctx context.Context, clientID, portfolioID string) (model.Portfolio, error)
	GetHoldings(ctx context.Context, clientID string) ([]model.Holding, error)
}

// ClientHandler serves /api/clients.
type ClientHandler struct {
	logger  *zap.Logger
	service ClientService
}

// NewClientHandler creates a ClientHandler.
func NewClientHandler(logger *zap.Logger, service ClientService) *ClientHandler {
	return &ClientHandler{logger: logger, service: service}
}

func (h *ClientHandler) ListClients(c *fiber.Ctx) error {
	clients, err := h.service.GetClients(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "get_clients", err)
	}
	return c.JSON(fiber.Map{"clients": clients})
}

func (h *ClientHandler) GetClient(c *fiber.Ctx) error {
	client, err := h.service.GetClient(c.UserContext(), c.Params("clientId"))
	if err != nil {
		return writeError(c, h.logger, "get_client", err)
	}
	return c.JSON(client)
}

// UpdateClient merges the supplied fields into the stored client.
func (h *ClientHandler) UpdateClient(c *fiber.Ctx) error {
	var patch model.ClientPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, err.Error())
	}
	client, err := h.service.UpdateClient(c.UserContext(), c.Params("clientId"), patch)
	if err != nil {
		return writeError(c, h.logger, "update_client", err)
	}
	return c.JSON(client)
}

func (h *ClientHandler) GetHoldings(c *fiber.Ctx) error {
	holdings, err := h.service.GetHoldings(c.UserContext(), c.Params("clientId"))
	if err != nil {
		return writeError(c, h.logger, "get_holdings", err)
	}
	return c.JSON(fiber.Map{"holdings": holdings})
}

func (h *ClientHandler) GetPortfolio(c *fiber.Ctx) error {
	p, err := h.service.GetPortfolio(c.UserContext(), c.Params("clientId"), c.Params("portfolioId"))
	if err != nil {
		return writeError(c, h.logger, "get_portfolio", err)
	}
	return c.JSON(p)
}
