package model

import "time"

// AuditLogEntry records a single action against a reference.
type AuditLogEntry struct {
	ID          string    `json:"id"`
	ReferenceID string    `json:"referenceId"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	UserID      string    `json:"userId"`
	Timestamp   time.Time `json:"timestamp"`
}

// AuditExport is the receipt for an audit log export.
type AuditExport struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}
