// Package repository defines the persistence contracts of the portal services
// and their in-memory implementations.
package repository

import (
	"context"
	"errors"

	"github.com/Checker-Finance/client-portal/pkg/model"
)

// ErrDuplicate is returned by Create when the id is already taken.
var ErrDuplicate = errors.New("duplicate id")

// UserRecord is a login identity with its credentials.
type UserRecord struct {
	User         model.User
	PasswordHash []byte
	MFASecret    string
}

// UserRepository stores login identities.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (UserRecord, error)
	GetByID(ctx context.Context, userID string) (UserRecord, error)
	Save(ctx context.Context, rec UserRecord) error
}

// ClientRepository stores institutional clients.
type ClientRepository interface {
	List(ctx context.Context) ([]model.Client, error)
	Get(ctx context.Context, clientID string) (model.Client, error)
	// Update applies fn to the stored client under the repository lock and
	// returns the result. An error from fn aborts the update.
	Update(ctx context.Context, clientID string, fn func(*model.Client) error) (model.Client, error)
}

// InstructionRepository stores instructions, newest first.
type InstructionRepository interface {
	List(ctx context.Context, filter model.InstructionFilter) ([]model.Instruction, error)
	Get(ctx context.Context, id string) (model.Instruction, error)
	Create(ctx context.Context, ins model.Instruction) error
	Update(ctx context.Context, id string, fn func(*model.Instruction) error) (model.Instruction, error)
}

// TradeRepository stores trades, newest first.
type TradeRepository interface {
	List(ctx context.Context) ([]model.Trade, error)
	Get(ctx context.Context, tradeID string) (model.Trade, error)
	Create(ctx context.Context, t model.Trade) error
}

// StatementRepository stores generated statements.
type StatementRepository interface {
	List(ctx context.Context) ([]model.Statement, error)
	Get(ctx context.Context, statementID string) (model.Statement, error)
}

// AuditRepository is an append-only audit log.
type AuditRepository interface {
	Append(ctx context.Context, entries ...model.AuditLogEntry) error
	// List returns entries newest first.
	List(ctx context.Context) ([]model.AuditLogEntry, error)
}

// NotificationRepository stores per-user inboxes and delivery preferences.
type NotificationRepository interface {
	List(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error)
	Add(ctx context.Context, n model.Notification) error
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	GetPreferences(ctx context.Context, userID string) (model.NotificationPreferences, error)
	SavePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) error
}

// MandateRepository stores client mandates.
type MandateRepository interface {
	List(ctx context.Context, clientID string) ([]model.Mandate, error)
}

// FeedbackRepository stores relationship feedback and assigns ticket ids.
type FeedbackRepository interface {
	Create(ctx context.Context, fb model.Feedback) (model.Feedback, error)
}

// Set bundles one repository per entity.
type Set struct {
	Users         UserRepository
	Clients       ClientRepository
	Instructions  InstructionRepository
	Trades        TradeRepository
	Statements    StatementRepository
	Audit         AuditRepository
	Notifications NotificationRepository
	Mandates      MandateRepository
	Feedback      FeedbackRepository
}
