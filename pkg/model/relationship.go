package model

import "time"

// MandateStatus is the review state of an uploaded mandate.
type MandateStatus string

const (
	MandatePending  MandateStatus = "pending"
	MandateApproved MandateStatus = "approved"
	MandateRejected MandateStatus = "rejected"
)

// Mandate is a signed trading mandate on file for a client.
type Mandate struct {
	MandateID  string        `json:"mandateId"`
	ID         string        `json:"id"`
	ClientID   string        `json:"clientId"`
	Type       string        `json:"type"`
	Version    string        `json:"version"`
	Status     MandateStatus `json:"status"`
	UploadedAt time.Time     `json:"uploadedAt"`
}

// FeedbackCategories are the accepted relationship feedback categories.
var FeedbackCategories = []string{"general", "complaint", "suggestion", "support"}

// Feedback is a message sent to the relationship team.
type Feedback struct {
	TicketID  string    `json:"ticketId"`
	UserID    string    `json:"userId"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}
