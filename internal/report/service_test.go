package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

var testNow = time.Date(2024, 6, 14, 9, 30, 0, 0, time.UTC)

func newTestService() *Service {
	return NewService(
		repository.NewMemoryStatements(fixtures.Statements(testNow)...),
		repository.NewMemoryInstructions(fixtures.Instructions(testNow)...),
		latency.Disabled(),
		clockwork.NewFakeClockAt(testNow),
		nil,
	)
}

func TestGetReportTypes(t *testing.T) {
	types, err := newTestService().GetReportTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 4)
	assert.Equal(t, "portfolio-summary", types[0].ID)
}

func TestGenerateReport(t *testing.T) {
	svc := newTestService()

	rep, err := svc.GenerateReport(context.Background(), "income-tax", map[string]string{"year": "2024"}, "")
	require.NoError(t, err)
	assert.Equal(t, "income-tax", rep.ReportType)
	assert.Equal(t, FormatJSON, rep.Format)
	assert.Equal(t, "2024", rep.Filters["year"])
	assert.Equal(t, testNow, rep.GeneratedAt)

	require.True(t, strings.HasPrefix(rep.URL, "data:text/plain;base64,"))
	body, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(rep.URL, "data:text/plain;base64,"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "Income & Tax Statement")

	_, err = svc.GenerateReport(context.Background(), "nope", nil, "pdf")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = svc.GenerateReport(context.Background(), "income-tax", nil, "docx")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestGetStatements(t *testing.T) {
	svc := newTestService()

	sts, err := svc.GetStatements(context.Background(), "CLIENT-001")
	require.NoError(t, err)
	require.Len(t, sts, 12)
	assert.Equal(t, "STMT-202400", sts[0].StatementID)

	_, err = svc.GetStatements(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestDownloadStatement(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	pdf, err := svc.DownloadStatement(ctx, "STMT-202401", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.Contains(t, string(pdf.Body), "Statement STMT-202401")

	out, err := svc.DownloadStatement(ctx, "STMT-202401", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", out.ContentType)
	rows, err := csv.NewReader(bytes.NewReader(out.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "STMT-202401", rows[1][0])
	assert.Equal(t, "available", rows[1][5])

	_, err = svc.DownloadStatement(ctx, "STMT-1", "pdf")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.DownloadStatement(ctx, "STMT-202401", "xml")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestGetKPIs(t *testing.T) {
	k, err := newTestService().GetKPIs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8_500_000_000), k.Totals.Assets)
	assert.Equal(t, 98.5, k.Trades.SettlementRate)
	assert.Equal(t, 3, k.Alerts.OpenExceptions)

	var pending, completed int
	for _, ins := range fixtures.Instructions(testNow) {
		switch ins.Status {
		case model.InstructionSubmitted, model.InstructionPending:
			pending++
		case model.InstructionCompleted:
			completed++
		}
	}
	assert.Equal(t, pending, k.Instructions.PendingApproval)
	assert.Equal(t, completed, k.Instructions.Completed)
}
