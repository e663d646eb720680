package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

func newTestService() *Service {
	repo := repository.NewMemoryClients(fixtures.Clients()...)
	return NewService(repo, fixtures.New(7), latency.Disabled(), nil)
}

func strPtr(s string) *string { return &s }

func TestGetClients(t *testing.T) {
	svc := newTestService()
	clients, err := svc.GetClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "Zenith Pensions", clients[0].Name)
	assert.Equal(t, "Unity Insurance", clients[1].Name)
}

func TestGetClient(t *testing.T) {
	svc := newTestService()

	c, err := svc.GetClient(context.Background(), "CLIENT-002")
	require.NoError(t, err)
	assert.Equal(t, "Insurance", c.Segment)

	first, err := svc.GetClient(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "CLIENT-001", first.ClientID)

	_, err = svc.GetClient(context.Background(), "CLIENT-999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateClient_MergesKYC(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	before, err := svc.GetClient(ctx, "CLIENT-001")
	require.NoError(t, err)
	require.NotEmpty(t, before.KYCData.Phone)

	updated, err := svc.UpdateClient(ctx, "CLIENT-001", model.ClientPatch{
		KYCData: &model.KYCPatch{Email: strPtr("new@x.com")},
	})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", updated.KYCData.Email)
	assert.Equal(t, before.KYCData.Phone, updated.KYCData.Phone)
	assert.Equal(t, before.Name, updated.Name)

	again, err := svc.GetClient(ctx, "CLIENT-001")
	require.NoError(t, err)
	assert.Equal(t, updated, again)
}

func TestUpdateClient_LastWriteWins(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.UpdateClient(ctx, "CLIENT-002", model.ClientPatch{Name: strPtr("First")})
	require.NoError(t, err)
	got, err := svc.UpdateClient(ctx, "CLIENT-002", model.ClientPatch{Name: strPtr("Second")})
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Name)
}

func TestUpdateClient_Errors(t *testing.T) {
	svc := newTestService()

	_, err := svc.UpdateClient(context.Background(), "CLIENT-001", model.ClientPatch{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.UpdateClient(context.Background(), "CLIENT-404", model.ClientPatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetPortfolio(t *testing.T) {
	svc := newTestService()

	p, err := svc.GetPortfolio(context.Background(), "CLIENT-001", "PF-002")
	require.NoError(t, err)
	assert.Equal(t, "Liquidity Sleeve", p.Name)

	fallback, err := svc.GetPortfolio(context.Background(), "CLIENT-001", "PF-404")
	require.NoError(t, err)
	assert.Equal(t, "PF-001", fallback.PortfolioID)
}

func TestGetHoldings_GeneratedOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.GetHoldings(ctx, "CLIENT-001")
	require.NoError(t, err)
	require.Len(t, first, 5)
	for _, h := range first {
		assert.True(t, h.Value.Equal(h.Quantity.Mul(h.Price)), h.ISIN)
	}

	second, err := svc.GetHoldings(ctx, "CLIENT-001")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := svc.GetHoldings(ctx, "CLIENT-002")
	require.NoError(t, err)
	assert.Len(t, other, 5)

	_, err = svc.GetHoldings(ctx, "CLIENT-404")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelledContext(t *testing.T) {
	svc := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GetClients(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
