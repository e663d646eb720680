package fixtures

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/client-portal/pkg/model"
)

// SeedUser is a login identity with its clear-text demo password.
type SeedUser struct {
	User     model.User
	Password string
}

// Dataset is the initial content of every repository.
type Dataset struct {
	Users         []SeedUser
	Clients       []model.Client
	Instructions  []model.Instruction
	Trades        []model.Trade
	Statements    []model.Statement
	Mandates      []model.Mandate
	Notifications []model.Notification
	AuditLogs     []model.AuditLogEntry
}

type instrument struct {
	isin  string
	name  string
	price string
}

var instruments = []instrument{
	{"NG1234567890", "ZENITHBANK", "35.4"},
	{"NG0987654321", "GTCO", "28.1"},
	{"NG1111111111", "MTNN", "245.8"},
	{"NG2222222222", "DANGCEM", "320.5"},
	{"NG3333333333", "UBA", "22.3"},
}

// ReportTypes are the reports the portal can generate.
var ReportTypes = []model.ReportType{
	{ID: "portfolio-summary", Name: "Portfolio Summary"},
	{ID: "transaction-history", Name: "Transaction History"},
	{ID: "income-tax", Name: "Income & Tax Statement"},
	{ID: "corporate-actions", Name: "Corporate Actions Summary"},
}

// Users returns the fixed demo identities.
func Users() []SeedUser {
	return []SeedUser{
		{
			User: model.User{
				UserID:    "CLIENT-001",
				Email:     "client@example.com",
				FirstName: "John",
				LastName:  "Doe",
				Role:      "client",
			},
			Password: "password123",
		},
		{
			User: model.User{
				UserID:      "CLIENT-002",
				Email:       "admin@example.com",
				FirstName:   "Jane",
				LastName:    "Smith",
				Role:        "client",
				RequiresMFA: true,
			},
			Password: "admin123",
		},
	}
}

// Clients returns the two institutional clients without holdings.
func Clients() []model.Client {
	return []model.Client{
		{
			ClientID: "CLIENT-001",
			Name:     "Zenith Pensions",
			Segment:  "Pension",
			KYCData: model.KYCData{
				Email:   "client@example.com",
				Phone:   "+234 800 000 0000",
				Address: "123 Marina Street, Lagos, Nigeria",
				Contact: "John Doe",
			},
			Portfolios: []model.Portfolio{
				{PortfolioID: "PF-001", Name: "Core Holdings", AUM: decimal.NewFromInt(650000000)},
				{PortfolioID: "PF-002", Name: "Liquidity Sleeve", AUM: decimal.NewFromInt(180000000)},
			},
			Holdings: []model.Holding{},
		},
		{
			ClientID: "CLIENT-002",
			Name:     "Unity Insurance",
			Segment:  "Insurance",
			KYCData: model.KYCData{
				Email:   "admin@example.com",
				Phone:   "+234 800 000 1234",
				Address: "45 Awolowo Road, Ikoyi, Lagos",
				Contact: "Jane Smith",
			},
			Portfolios: []model.Portfolio{
				{PortfolioID: "PF-100", Name: "Core Fund", AUM: decimal.NewFromInt(420000000)},
			},
			Holdings: []model.Holding{},
		},
	}
}

// Holdings generates one position per listed instrument.
func (g *Generator) Holdings() []model.Holding {
	out := make([]model.Holding, 0, len(instruments))
	for i, in := range instruments {
		qty := decimal.NewFromInt(int64(500000 + i*25000 + g.IntN(20000)))
		out = append(out, model.NewHolding(in.isin, in.name, qty, decimal.RequireFromString(in.price)))
	}
	return out
}

func clientFor(i int) string {
	if i%2 == 0 {
		return "CLIENT-001"
	}
	return "CLIENT-002"
}

// Instructions returns ten instructions walking the status list.
func Instructions(now time.Time) []model.Instruction {
	out := make([]model.Instruction, 0, 10)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("INS-%d", 10000+i)
		status := model.InstructionStatuses[min(i, len(model.InstructionStatuses)-1)]
		typ := model.InstructionSell
		if i%3 == 0 {
			typ = model.InstructionBuy
		}
		isin := instruments[0].isin
		if i%2 != 0 {
			isin = instruments[1].isin
		}
		price := decimal.NewFromFloat(25 + float64(i)*1.5)
		out = append(out, model.Instruction{
			ID:            id,
			InstructionID: id,
			ClientID:      clientFor(i),
			Type:          typ,
			ISIN:          isin,
			Quantity:      decimal.NewFromInt(int64(5000 + i*750)),
			Price:         &price,
			Status:        status,
			CreatedAt:     now.Add(-time.Duration(i) * 24 * time.Hour),
			UpdatedAt:     now.Add(-time.Duration(i) * 12 * time.Hour),
		})
	}
	return out
}

// Trades returns six trades alternating between two instruments.
func Trades(now time.Time) []model.Trade {
	out := make([]model.Trade, 0, 6)
	for i := 0; i < 6; i++ {
		in := instruments[i%2]
		status := model.TradePending
		if i%3 == 0 {
			status = model.TradeSettled
		}
		tradeDate := now.Add(-time.Duration(i) * 24 * time.Hour)
		settlement := tradeDate.Add(48 * time.Hour)
		out = append(out, model.Trade{
			TradeID:        fmt.Sprintf("TRD-%d", 2000+i),
			ClientID:       clientFor(i),
			Instrument:     in.name,
			ISIN:           in.isin,
			Quantity:       decimal.NewFromInt(int64(10000 + i*2000)),
			Price:          decimal.NewFromInt(int64(30 + i*2)),
			Status:         status,
			TradeDate:      tradeDate,
			SettlementDate: &settlement,
		})
	}
	return out
}

// Statements returns twelve month-end statements, newest first.
func Statements(now time.Time) []model.Statement {
	types := []string{"Monthly", "Quarterly", "Annual"}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]model.Statement, 0, 12)
	for i := 0; i < 12; i++ {
		start := first.AddDate(0, -i, 0)
		end := start.AddDate(0, 1, -1)
		day := min(now.Day(), end.Day())
		status := model.StatementPending
		if i <= 3 {
			status = model.StatementAvailable
		}
		id := fmt.Sprintf("STMT-%d", 202400+i)
		out = append(out, model.Statement{
			StatementID: id,
			ID:          id,
			Type:        types[i%3],
			Period:      model.Period{StartDate: start, EndDate: end},
			Date:        time.Date(start.Year(), start.Month(), day, now.Hour(), now.Minute(), 0, 0, now.Location()),
			Status:      status,
		})
	}
	return out
}

// Mandates returns three mandate versions per client.
func (g *Generator) Mandates(now time.Time, clientIDs []string) []model.Mandate {
	statuses := []model.MandateStatus{model.MandatePending, model.MandateApproved, model.MandateRejected}
	var out []model.Mandate
	for _, cid := range clientIDs {
		for i := 1; i <= 3; i++ {
			id := fmt.Sprintf("MANDATE-%d", i)
			out = append(out, model.Mandate{
				MandateID:  id,
				ID:         id,
				ClientID:   cid,
				Type:       "Trading Mandate",
				Version:    fmt.Sprintf("%d.0", i),
				Status:     Pick(g, statuses),
				UploadedAt: now.Add(-g.DurationBetween(time.Hour, 30*24*time.Hour)),
			})
		}
	}
	return out
}

// Notifications returns the standard inbox for one user.
func Notifications(now time.Time, userID string) []model.Notification {
	seed := []struct {
		title, message string
		age            time.Duration
		read           bool
	}{
		{"Trade Settlement Completed", "TRD-000123 settled successfully for 10,000 units of ZENITHBANK", 15 * time.Minute, false},
		{"New Corporate Action", "Dividend announcement for DANGCEM - Ex-date: 2024-02-15", 2 * time.Hour, false},
		{"Monthly Statement Available", "January 2024 statement is ready for download", 5 * time.Hour, true},
		{"Instruction Approved", "INS-004567 approved and queued for execution", 8 * time.Hour, true},
		{"Portfolio Valuation Updated", "Portfolio value updated: NGN 8.5B (+2.3%)", 24 * time.Hour, true},
	}
	out := make([]model.Notification, 0, len(seed))
	for i, s := range seed {
		id := fmt.Sprintf("notif-%d", i+1)
		out = append(out, model.Notification{
			ID:             id,
			NotificationID: id,
			UserID:         userID,
			Title:          s.title,
			Message:        s.message,
			Read:           s.read,
			Timestamp:      now.Add(-s.age),
		})
	}
	return out
}

// AuditLogs returns ten historical entries.
func (g *Generator) AuditLogs(now time.Time) []model.AuditLogEntry {
	out := make([]model.AuditLogEntry, 0, 10)
	for i := 0; i < 10; i++ {
		action, desc, actor := "CREATE", "Record created", "SYSTEM"
		if i%2 == 0 {
			action, desc, actor = "UPDATE", "Record updated", "CLIENT-001"
		}
		out = append(out, g.AuditEntry(now, fmt.Sprintf("REF-%d", 1000+i), action, desc, actor))
	}
	return out
}

// AuditEntry builds an entry with a random AUD- id and a timestamp within the last day.
func (g *Generator) AuditEntry(now time.Time, ref, action, desc, actor string) model.AuditLogEntry {
	return model.AuditLogEntry{
		ID:          g.Code("AUD-", 6),
		ReferenceID: ref,
		Action:      action,
		Description: desc,
		UserID:      actor,
		Timestamp:   now.Add(-g.DurationBetween(0, 24*time.Hour)),
	}
}

// Seed assembles the full initial dataset.
func (g *Generator) Seed(now time.Time) Dataset {
	users := Users()
	clients := Clients()
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ClientID)
	}
	var notifs []model.Notification
	for _, u := range users {
		notifs = append(notifs, Notifications(now, u.User.UserID)...)
	}
	return Dataset{
		Users:         users,
		Clients:       clients,
		Instructions:  Instructions(now),
		Trades:        Trades(now),
		Statements:    Statements(now),
		Mandates:      g.Mandates(now, ids),
		Notifications: notifs,
		AuditLogs:     g.AuditLogs(now),
	}
}
