// Package audit serves the append-only audit log.
package audit

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Service reads and appends audit entries.
type Service struct {
	repo    repository.AuditRepository
	gen     *fixtures.Generator
	latency *latency.Simulator
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewService wires the audit service.
func NewService(repo repository.AuditRepository, gen *fixtures.Generator, lat *latency.Simulator, clock clockwork.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, gen: gen, latency: lat, clock: clock, logger: logger}
}

func (s *Service) wait(ctx context.Context, op string) (func(), error) {
	start := time.Now()
	done := func() { metrics.ObserveDuration(metrics.ServiceDuration, start, "audit", op) }
	return done, s.latency.Wait(ctx)
}

// GetAuditLogs returns every entry, newest first.
func (s *Service) GetAuditLogs(ctx context.Context) ([]model.AuditLogEntry, error) {
	done, err := s.wait(ctx, "get_audit_logs")
	defer done()
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// GetInstructionAudit returns the creation, submission and review trail of
// an instruction. The trail is synthesized on each call and never stored.
func (s *Service) GetInstructionAudit(ctx context.Context, instructionID string) ([]model.AuditLogEntry, error) {
	done, err := s.wait(ctx, "get_instruction_audit")
	defer done()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	return []model.AuditLogEntry{
		s.gen.AuditEntry(now, instructionID, "CREATE", fmt.Sprintf("Instruction %s created", instructionID), "CLIENT-001"),
		s.gen.AuditEntry(now, instructionID, "SUBMIT", fmt.Sprintf("Instruction %s submitted for approval", instructionID), "CLIENT-001"),
		s.gen.AuditEntry(now, instructionID, "REVIEW", fmt.Sprintf("Instruction %s under review", instructionID), "OPS-USER"),
	}, nil
}

// ExportAuditLogs renders the log as CSV and returns it as a data URL.
func (s *Service) ExportAuditLogs(ctx context.Context) (model.AuditExport, error) {
	done, err := s.wait(ctx, "export_audit_logs")
	defer done()
	if err != nil {
		return model.AuditExport{}, err
	}
	entries, err := s.repo.List(ctx)
	if err != nil {
		return model.AuditExport{}, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "referenceId", "action", "description", "userId", "timestamp"})
	for _, e := range entries {
		_ = w.Write([]string{e.ID, e.ReferenceID, e.Action, e.Description, e.UserID, e.Timestamp.Format(time.RFC3339)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return model.AuditExport{}, fmt.Errorf("write csv: %w", err)
	}

	s.logger.Info("audit.exported", zap.Int("entries", len(entries)))
	return model.AuditExport{
		Message: fmt.Sprintf("Audit logs export generated (%d entries)", len(entries)),
		URL:     "data:text/csv;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Record appends entries to the log.
func (s *Service) Record(ctx context.Context, entries ...model.AuditLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.repo.Append(ctx, entries...)
}
