package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/store"
)

// Deps bundles everything RegisterRoutes mounts.
type Deps struct {
	Logger   *zap.Logger
	Store    store.KV
	NATS     *nats.Conn // optional; omitted from /health when nil
	Tokens   TokenParser
	Sessions SessionRegistry

	Auth    *AuthHandler
	Clients *ClientHandler
	Trades  *TradeHandler
	Reports *ReportHandler
	Inbox   *InboxHandler
}

// RegisterRoutes registers all HTTP routes on the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(RequestMetrics())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", healthHandler(d.Store, d.NATS))

	api := app.Group("/api")

	// Public
	api.Post("/auth/login", d.Auth.LoginHandler)
	api.Post("/auth/verify-mfa", d.Auth.VerifyMFAHandler)
	api.Post("/auth/reset-password", d.Auth.ResetPasswordHandler)

	p := api.Group("", RequireSession(d.Tokens, d.Sessions, d.Logger))

	p.Post("/auth/logout", d.Auth.LogoutHandler)
	p.Get("/auth/me", d.Auth.MeHandler)
	p.Post("/auth/setup-mfa", d.Auth.SetupMFAHandler)
	p.Post("/auth/change-password", d.Auth.ChangePasswordHandler)
	p.Post("/session/activity", d.Auth.ActivityHandler)

	p.Get("/clients", d.Clients.ListClients)
	p.Get("/clients/:clientId", d.Clients.GetClient)
	p.Patch("/clients/:clientId", d.Clients.UpdateClient)
	p.Get("/clients/:clientId/holdings", d.Clients.GetHoldings)
	p.Get("/clients/:clientId/portfolios/:portfolioId", d.Clients.GetPortfolio)

	p.Get("/trades", d.Trades.ListTrades)
	p.Get("/trades/:tradeId", d.Trades.GetTrade)
	p.Post("/trades", d.Trades.CreateTrade)

	p.Get("/instructions", d.Trades.ListInstructions)
	p.Post("/instructions", d.Trades.CreateInstruction)
	p.Get("/instructions/:id", d.Trades.GetInstruction)
	p.Get("/instructions/:id/status", d.Trades.GetInstructionStatus)
	p.Get("/instructions/:id/audit", d.Reports.InstructionAudit)

	p.Get("/reports/types", d.Reports.ReportTypes)
	p.Post("/reports/generate", d.Reports.GenerateReport)
	p.Get("/reports/kpis", d.Reports.KPIs)
	p.Get("/reports/statements/:statementId/download", d.Reports.DownloadStatement)
	p.Get("/reports/statements/:clientId", d.Reports.Statements)

	p.Get("/audit", d.Reports.AuditLogs)
	p.Post("/audit/export", d.Reports.ExportAudit)

	p.Get("/notifications", d.Inbox.ListNotifications)
	p.Post("/notifications/read-all", d.Inbox.MarkAllRead)
	p.Get("/notifications/preferences", d.Inbox.GetPreferences)
	p.Put("/notifications/preferences", d.Inbox.UpdatePreferences)
	p.Post("/notifications/:id/read", d.Inbox.MarkRead)

	p.Get("/mandates", d.Inbox.Mandates)
	p.Post("/relationship/feedback", d.Inbox.SubmitFeedback)
}

func healthHandler(st store.KV, nc *nats.Conn) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := map[string]string{"store": "ok"}
		status := "ok"
		code := fiber.StatusOK

		if nc != nil {
			checks["nats"] = "ok"
			if !nc.IsConnected() {
				checks["nats"] = "disconnected"
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
				checks["nats"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
