// Package client serves institutional client profiles, portfolios and
// holdings.
package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Service reads and updates client records.
type Service struct {
	repo    repository.ClientRepository
	gen     *fixtures.Generator
	latency *latency.Simulator
	logger  *zap.Logger
}

// NewService wires the client service.
func NewService(repo repository.ClientRepository, gen *fixtures.Generator, lat *latency.Simulator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, gen: gen, latency: lat, logger: logger}
}

func (s *Service) begin(ctx context.Context, op string) (func(), error) {
	start := time.Now()
	done := func() { metrics.ObserveDuration(metrics.ServiceDuration, start, "client", op) }
	if err := s.latency.Wait(ctx); err != nil {
		return done, err
	}
	return done, nil
}

// GetClients returns every client.
func (s *Service) GetClients(ctx context.Context) ([]model.Client, error) {
	done, err := s.begin(ctx, "get_clients")
	defer done()
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// GetClient returns one client. An empty id selects the first client.
func (s *Service) GetClient(ctx context.Context, clientID string) (model.Client, error) {
	done, err := s.begin(ctx, "get_client")
	defer done()
	if err != nil {
		return model.Client{}, err
	}
	return s.lookup(ctx, clientID)
}

func (s *Service) lookup(ctx context.Context, clientID string) (model.Client, error) {
	if clientID != "" {
		return s.repo.Get(ctx, clientID)
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return model.Client{}, err
	}
	if len(all) == 0 {
		return model.Client{}, apperr.NotFound("client not found")
	}
	return all[0], nil
}

// UpdateClient merges patch into the stored client. The last write wins.
func (s *Service) UpdateClient(ctx context.Context, clientID string, patch model.ClientPatch) (model.Client, error) {
	done, err := s.begin(ctx, "update_client")
	defer done()
	if err != nil {
		return model.Client{}, err
	}
	if patch.Empty() {
		return model.Client{}, apperr.InvalidInput("no fields to update")
	}
	updated, err := s.repo.Update(ctx, clientID, func(c *model.Client) error {
		patch.Apply(c)
		return nil
	})
	if err != nil {
		return model.Client{}, err
	}
	s.logger.Info("client.updated", zap.String("client_id", clientID))
	return updated, nil
}

// GetPortfolio returns portfolioID of the client, falling back to the
// client's first portfolio when the id is unknown.
func (s *Service) GetPortfolio(ctx context.Context, clientID, portfolioID string) (model.Portfolio, error) {
	done, err := s.begin(ctx, "get_portfolio")
	defer done()
	if err != nil {
		return model.Portfolio{}, err
	}
	c, err := s.lookup(ctx, clientID)
	if err != nil {
		return model.Portfolio{}, err
	}
	for _, p := range c.Portfolios {
		if p.PortfolioID == portfolioID {
			return p, nil
		}
	}
	if len(c.Portfolios) == 0 {
		return model.Portfolio{}, apperr.NotFound("portfolio not found")
	}
	return c.Portfolios[0], nil
}

// GetHoldings returns the client's holdings, generating them on first use.
// Later calls return the same set.
func (s *Service) GetHoldings(ctx context.Context, clientID string) ([]model.Holding, error) {
	done, err := s.begin(ctx, "get_holdings")
	defer done()
	if err != nil {
		return nil, err
	}
	c, err := s.lookup(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(c.Holdings) > 0 {
		return c.Holdings, nil
	}

	updated, err := s.repo.Update(ctx, c.ClientID, func(cl *model.Client) error {
		if len(cl.Holdings) == 0 {
			cl.Holdings = s.gen.Holdings()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("client.holdings.generated", zap.String("client_id", c.ClientID), zap.Int("count", len(updated.Holdings)))
	return updated.Holdings, nil
}
