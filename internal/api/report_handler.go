package api

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/pkg/model"
)

// ReportService defines the reporting operations used by the handler.
type ReportService interface {
	GetReportTypes(ctx context.Context) ([]model.ReportType, error)
	GenerateReport(ctx context.Context, reportType string, filters map[string]string, format string) (model.Report, error)
	GetStatements(ctx context.Context, clientID string) ([]model.Statement, error)
	DownloadStatement(ctx context.Context, statementID, format string) (model.StatementDownload, error)
	GetKPIs(ctx context.Context) (model.KPIs, error)
}

// AuditService defines the audit operations used by the handler.
type AuditService interface {
	GetAuditLogs(ctx context.Context) ([]model.AuditLogEntry, error)
	GetInstructionAudit(ctx context.Context, instructionID string) ([]model.AuditLogEntry, error)
	ExportAuditLogs(ctx context.Context) (model.AuditExport, error)
}

// ReportHandler serves /api/reports and /api/audit.
type ReportHandler struct {
	logger  *zap.Logger
	reports ReportService
	audit   AuditService
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(logger *zap.Logger, reports ReportService, audit AuditService) *ReportHandler {
	return &ReportHandler{logger: logger, reports: reports, audit: audit}
}

func (h *ReportHandler) ReportTypes(c *fiber.Ctx) error {
	types, err := h.reports.GetReportTypes(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "get_report_types", err)
	}
	return c.JSON(fiber.Map{"reportTypes": types})
}

func (h *ReportHandler) GenerateReport(c *fiber.Ctx) error {
	var req GenerateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	report, err := h.reports.GenerateReport(c.UserContext(), req.ReportType, req.Filters, req.Format)
	if err != nil {
		return writeError(c, h.logger, "generate_report", err)
	}
	return c.JSON(report)
}

func (h *ReportHandler) Statements(c *fiber.Ctx) error {
	clientID := c.Params("clientId")
	statements, err := h.reports.GetStatements(c.UserContext(), clientID)
	if err != nil {
		return writeError(c, h.logger, "get_statements", err)
	}
	return c.JSON(fiber.Map{"clientId": clientID, "statements": statements})
}

// DownloadStatement streams the rendered statement as an attachment.
func (h *ReportHandler) DownloadStatement(c *fiber.Ctx) error {
	dl, err := h.reports.DownloadStatement(c.UserContext(), c.Params("statementId"), c.Query("format"))
	if err != nil {
		return writeError(c, h.logger, "download_statement", err)
	}
	c.Set(fiber.HeaderContentType, dl.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.%s"`, dl.StatementID, dl.Format))
	return c.Send(dl.Body)
}

func (h *ReportHandler) KPIs(c *fiber.Ctx) error {
	kpis, err := h.reports.GetKPIs(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "get_kpis", err)
	}
	return c.JSON(kpis)
}

func (h *ReportHandler) AuditLogs(c *fiber.Ctx) error {
	logs, err := h.audit.GetAuditLogs(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "get_audit_logs", err)
	}
	return c.JSON(fiber.Map{"data": logs})
}

func (h *ReportHandler) InstructionAudit(c *fiber.Ctx) error {
	logs, err := h.audit.GetInstructionAudit(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "get_instruction_audit", err)
	}
	return c.JSON(fiber.Map{"data": logs})
}

func (h *ReportHandler) ExportAudit(c *fiber.Ctx) error {
	export, err := h.audit.ExportAuditLogs(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "export_audit_logs", err)
	}
	return c.JSON(export)
}
