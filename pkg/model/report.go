package model

import "time"

// ReportType describes a report the portal can generate.
type ReportType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Report is the receipt for a generated report.
type Report struct {
	ReportType  string            `json:"reportType"`
	Filters     map[string]string `json:"filters"`
	Format      string            `json:"format"`
	GeneratedAt time.Time         `json:"generatedAt"`
	URL         string            `json:"url"`
}

// StatementStatus reports whether a statement can be downloaded.
type StatementStatus string

const (
	StatementAvailable StatementStatus = "available"
	StatementPending   StatementStatus = "pending"
)

// Period is an inclusive date range.
type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Statement is a periodic account statement.
type Statement struct {
	StatementID string          `json:"statementId"`
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Period      Period          `json:"period"`
	Date        time.Time       `json:"date"`
	Status      StatementStatus `json:"status"`
}

// StatementDownload is a rendered statement body.
type StatementDownload struct {
	StatementID string
	Format      string
	ContentType string
	Body        []byte
}

// KPIs is the dashboard key-indicator payload.
type KPIs struct {
	Totals struct {
		Assets  int64 `json:"assets"`
		Cash    int64 `json:"cash"`
		Clients int   `json:"clients"`
	} `json:"totals"`
	Instructions struct {
		PendingApproval int `json:"pendingApproval"`
		Completed       int `json:"completed"`
	} `json:"instructions"`
	Trades struct {
		PendingSettlements int     `json:"pendingSettlements"`
		SettlementRate     float64 `json:"settlementRate"`
		TodaysVolume       int64   `json:"todaysVolume"`
	} `json:"trades"`
	Alerts struct {
		OpenExceptions           int `json:"openExceptions"`
		PendingReconciliations   int `json:"pendingReconciliations"`
		UpcomingCorporateActions int `json:"upcomingCorporateActions"`
	} `json:"alerts"`
}
