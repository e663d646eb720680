package api

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/client-portal/internal/relationship"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyMFARequest is the payload for POST /api/auth/verify-mfa.
type VerifyMFARequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

// ResetPasswordRequest is the payload for POST /api/auth/reset-password.
type ResetPasswordRequest struct {
	Email string `json:"email"`
}

// ChangePasswordRequest is the payload for POST /api/auth/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ActivityRequest reports browser activity to keep a session alive.
type ActivityRequest struct {
	Type string `json:"type"`
}

// CreateTradeRequest is the payload for POST /api/trades.
type CreateTradeRequest struct {
	ClientID   string          `json:"clientId"`
	Instrument string          `json:"instrument"`
	ISIN       string          `json:"isin"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// CreateInstructionRequest is the payload for POST /api/instructions.
type CreateInstructionRequest struct {
	ClientID string           `json:"clientId"`
	Type     string           `json:"type"`
	ISIN     string           `json:"isin"`
	Quantity decimal.Decimal  `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// GenerateReportRequest is the payload for POST /api/reports/generate.
type GenerateReportRequest struct {
	ReportType string            `json:"reportType"`
	Filters    map[string]string `json:"filters"`
	Format     string            `json:"format"`
}

// FeedbackRequest is the payload for POST /api/relationship/feedback.
type FeedbackRequest struct {
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// Validate checks that LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// Validate checks that VerifyMFARequest has all required fields.
func (r *VerifyMFARequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	return nil
}

// Validate checks that ChangePasswordRequest has all required fields.
func (r *ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" {
		return fmt.Errorf("oldPassword is required")
	}
	if r.NewPassword == "" {
		return fmt.Errorf("newPassword is required")
	}
	return nil
}

// Validate checks that CreateInstructionRequest has all required fields.
// Range checks live in the trade service.
func (r *CreateInstructionRequest) Validate() error {
	if r.ISIN == "" {
		return fmt.Errorf("isin is required")
	}
	if r.Type == "" {
		return fmt.Errorf("type is required")
	}
	return nil
}

func (r CreateTradeRequest) toModel() model.NewTrade {
	return model.NewTrade{
		ClientID:   r.ClientID,
		Instrument: r.Instrument,
		ISIN:       r.ISIN,
		Quantity:   r.Quantity,
		Price:      r.Price,
	}
}

func (r CreateInstructionRequest) toModel() model.NewInstruction {
	return model.NewInstruction{
		ClientID: r.ClientID,
		Type:     model.InstructionType(strings.ToLower(r.Type)),
		ISIN:     r.ISIN,
		Quantity: r.Quantity,
		Price:    r.Price,
	}
}

func (r FeedbackRequest) toInput() relationship.FeedbackInput {
	return relationship.FeedbackInput{
		Subject:  r.Subject,
		Message:  r.Message,
		Category: r.Category,
	}
}
