package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

var now = time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)

func newSet(t *testing.T) *Set {
	t.Helper()
	ds := fixtures.New(42).Seed(now)
	var users []UserRecord
	for _, u := range ds.Users {
		users = append(users, UserRecord{User: u.User, PasswordHash: []byte(u.Password)})
	}
	return NewMemorySet(ds, users)
}

func TestMemoryUsers_EmailLookupIsCaseInsensitive(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()

	rec, err := set.Users.GetByEmail(ctx, "Client@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "CLIENT-001", rec.User.UserID)

	_, err = set.Users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryUsers_SaveReindexesEmail(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()

	rec, err := set.Users.GetByID(ctx, "CLIENT-001")
	require.NoError(t, err)
	rec.User.Email = "john@zenith.example"
	require.NoError(t, set.Users.Save(ctx, rec))

	_, err = set.Users.GetByEmail(ctx, "client@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	got, err := set.Users.GetByEmail(ctx, "john@zenith.example")
	require.NoError(t, err)
	assert.Equal(t, "CLIENT-001", got.User.UserID)
}

func TestMemoryClients_ReturnsCopies(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()

	c, err := set.Clients.Get(ctx, "CLIENT-001")
	require.NoError(t, err)
	c.Name = "mutated"
	c.Portfolios[0].Name = "mutated"

	again, err := set.Clients.Get(ctx, "CLIENT-001")
	require.NoError(t, err)
	assert.Equal(t, "Zenith Pensions", again.Name)
	assert.Equal(t, "Core Holdings", again.Portfolios[0].Name)
}

func TestMemoryClients_UpdateAbortsOnError(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()

	_, err := set.Clients.Update(ctx, "CLIENT-001", func(c *model.Client) error {
		c.Name = "half-written"
		return errors.New("nope")
	})
	require.Error(t, err)

	c, _ := set.Clients.Get(ctx, "CLIENT-001")
	assert.Equal(t, "Zenith Pensions", c.Name)

	_, err = set.Clients.Update(ctx, "CLIENT-404", func(*model.Client) error { return nil })
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryInstructions_FilterAndPrepend(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()

	byClient, err := set.Instructions.List(ctx, model.InstructionFilter{ClientID: "CLIENT-001"})
	require.NoError(t, err)
	require.NotEmpty(t, byClient)
	for _, ins := range byClient {
		assert.Equal(t, "CLIENT-001", ins.ClientID)
	}

	both, err := set.Instructions.List(ctx, model.InstructionFilter{ClientID: "CLIENT-001", Status: model.InstructionPending})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "INS-10002", both[0].ID)

	require.NoError(t, set.Instructions.Create(ctx, model.Instruction{ID: "INS-55555", InstructionID: "INS-55555"}))
	all, _ := set.Instructions.List(ctx, model.InstructionFilter{})
	assert.Equal(t, "INS-55555", all[0].ID)
	assert.Len(t, all, 11)

	assert.Error(t, set.Instructions.Create(ctx, model.Instruction{ID: "INS-55555", InstructionID: "INS-55555"}))
}

func TestMemoryTrades_GetMissing(t *testing.T) {
	set := newSet(t)
	_, err := set.Trades.Get(context.Background(), "TRD-9999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryAudit_NewestFirst(t *testing.T) {
	audit := NewMemoryAudit()
	ctx := context.Background()
	require.NoError(t, audit.Append(ctx, model.AuditLogEntry{ID: "a"}, model.AuditLogEntry{ID: "b"}))
	require.NoError(t, audit.Append(ctx, model.AuditLogEntry{ID: "c"}))

	got, err := audit.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestMemoryNotifications_Inbox(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()

	unread, err := set.Notifications.List(ctx, "CLIENT-001", true)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	require.NoError(t, set.Notifications.MarkRead(ctx, "CLIENT-001", "notif-1"))
	assert.ErrorIs(t, set.Notifications.MarkRead(ctx, "CLIENT-001", "notif-99"), apperr.ErrNotFound)

	n, err := set.Notifications.MarkAllRead(ctx, "CLIENT-001")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The other user's inbox is untouched.
	other, _ := set.Notifications.List(ctx, "CLIENT-002", true)
	assert.Len(t, other, 2)
}

func TestMemoryNotifications_Preferences(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()

	p, err := set.Notifications.GetPreferences(ctx, "CLIENT-001")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultNotificationPreferences(), p)

	want := model.NotificationPreferences{Email: false, SMS: true, InApp: true}
	require.NoError(t, set.Notifications.SavePreferences(ctx, "CLIENT-001", want))
	p, _ = set.Notifications.GetPreferences(ctx, "CLIENT-001")
	assert.Equal(t, want, p)
}

func TestMemoryMandates_FilterByClient(t *testing.T) {
	set := newSet(t)
	ms, err := set.Mandates.List(context.Background(), "CLIENT-002")
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, "MANDATE-1", ms[0].MandateID)
	assert.Equal(t, "1.0", ms[0].Version)
}

func TestMemoryFeedback_SequentialTickets(t *testing.T) {
	fb := NewMemoryFeedback()
	a, _ := fb.Create(context.Background(), model.Feedback{Subject: "a"})
	b, _ := fb.Create(context.Background(), model.Feedback{Subject: "b"})
	assert.Equal(t, "TICKET-001", a.TicketID)
	assert.Equal(t, "TICKET-002", b.TicketID)
}
