// Package report serves report types, statements and dashboard KPIs.
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
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
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Download and report formats.
const (
	FormatJSON = "json"
	FormatPDF  = "pdf"
	FormatCSV  = "csv"
)

var reportFormats = map[string]bool{FormatJSON: true, FormatPDF: true, FormatCSV: true}

// Service implements the reporting operations.
type Service struct {
	statements   repository.StatementRepository
	instructions repository.InstructionRepository
	latency      *latency.Simulator
	clock        clockwork.Clock
	logger       *zap.Logger
}

// NewService wires the report service.
func NewService(statements repository.StatementRepository, instructions repository.InstructionRepository, lat *latency.Simulator, clock clockwork.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		statements:   statements,
		instructions: instructions,
		latency:      lat,
		clock:        clock,
		logger:       logger,
	}
}

func (s *Service) wait(ctx context.Context, op string) (func(), error) {
	start := time.Now()
	done := func() { metrics.ObserveDuration(metrics.ServiceDuration, start, "report", op) }
	return done, s.latency.Wait(ctx)
}

// GetReportTypes returns the reports that can be generated.
func (s *Service) GetReportTypes(ctx context.Context) ([]model.ReportType, error) {
	done, err := s.wait(ctx, "get_report_types")
	defer done()
	if err != nil {
		return nil, err
	}
	return append([]model.ReportType(nil), fixtures.ReportTypes...), nil
}

// GenerateReport returns a receipt for a report of reportType. An empty
// format means json.
func (s *Service) GenerateReport(ctx context.Context, reportType string, filters map[string]string, format string) (model.Report, error) {
	done, err := s.wait(ctx, "generate_report")
	defer done()
	if err != nil {
		return model.Report{}, err
	}

	rt, ok := findReportType(reportType)
	if !ok {
		return model.Report{}, apperr.InvalidInput("unknown report type %q", reportType)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatJSON
	}
	if !reportFormats[format] {
		return model.Report{}, apperr.InvalidInput("unsupported format %q", format)
	}
	if filters == nil {
		filters = map[string]string{}
	}

	now := s.clock.Now().UTC()
	body := fmt.Sprintf("%s\nGenerated: %s\nFormat: %s\n", rt.Name, now.Format(time.RFC3339), format)
	s.logger.Info("report.generated", zap.String("report_type", rt.ID), zap.String("format", format))
	return model.Report{
		ReportType:  rt.ID,
		Filters:     filters,
		Format:      format,
		GeneratedAt: now,
		URL:         "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(body)),
	}, nil
}

func findReportType(id string) (model.ReportType, bool) {
	for _, rt := range fixtures.ReportTypes {
		if rt.ID == id {
			return rt, true
		}
	}
	return model.ReportType{}, false
}

// GetStatements returns the statements available to clientID.
func (s *Service) GetStatements(ctx context.Context, clientID string) ([]model.Statement, error) {
	done, err := s.wait(ctx, "get_statements")
	defer done()
	if err != nil {
		return nil, err
	}
	if clientID == "" {
		return nil, apperr.InvalidInput("clientId is required")
	}
	return s.statements.List(ctx)
}

// DownloadStatement renders a statement as pdf (plain text body) or csv.
func (s *Service) DownloadStatement(ctx context.Context, statementID, format string) (model.StatementDownload, error) {
	done, err := s.wait(ctx, "download_statement")
	defer done()
	if err != nil {
		return model.StatementDownload{}, err
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatPDF
	}
	st, err := s.statements.Get(ctx, statementID)
	if err != nil {
		return model.StatementDownload{}, err
	}

	now := s.clock.Now().UTC()
	switch format {
	case FormatPDF:
		body := fmt.Sprintf("Statement %s\nGenerated: %s\nFormat: %s\n\nMock data only.",
			st.StatementID, now.Format(time.RFC1123), format)
		return model.StatementDownload{
			StatementID: st.StatementID,
			Format:      format,
			ContentType: "application/pdf",
			Body:        []byte(body),
		}, nil
	case FormatCSV:
		body, err := statementCSV(st, now)
		if err != nil {
			return model.StatementDownload{}, err
		}
		return model.StatementDownload{
			StatementID: st.StatementID,
			Format:      format,
			ContentType: "text/csv",
			Body:        body,
		}, nil
	}
	return model.StatementDownload{}, apperr.InvalidInput("unsupported format %q", format)
}

func statementCSV(st model.Statement, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"statementId", "type", "periodStart", "periodEnd", "date", "status", "generatedAt"},
		{
			st.StatementID,
			st.Type,
			st.Period.StartDate.Format(time.DateOnly),
			st.Period.EndDate.Format(time.DateOnly),
			st.Date.Format(time.DateOnly),
			string(st.Status),
			now.Format(time.RFC3339),
		},
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// GetKPIs returns the dashboard indicators. Instruction counters come from
// the instruction repository; the rest is a fixed payload.
func (s *Service) GetKPIs(ctx context.Context) (model.KPIs, error) {
	done, err := s.wait(ctx, "get_kpis")
	defer done()
	if err != nil {
		return model.KPIs{}, err
	}

	var k model.KPIs
	k.Totals.Assets = 8_500_000_000
	k.Totals.Cash = 1_200_000_000
	k.Totals.Clients = 45
	k.Trades.PendingSettlements = 8
	k.Trades.SettlementRate = 98.5
	k.Trades.TodaysVolume = 1_250_000_000
	k.Alerts.OpenExceptions = 3
	k.Alerts.PendingReconciliations = 2
	k.Alerts.UpcomingCorporateActions = 5

	all, err := s.instructions.List(ctx, model.InstructionFilter{})
	if err != nil {
		return model.KPIs{}, err
	}
	for _, ins := range all {
		switch ins.Status {
		case model.InstructionSubmitted, model.InstructionPending:
			k.Instructions.PendingApproval++
		case model.InstructionCompleted:
			k.Instructions.Completed++
		}
	}
	return k, nil
}
