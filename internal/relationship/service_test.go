package relationship

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/repository"
)

var testNow = time.Date(2024, 6, 14, 9, 30, 0, 0, time.UTC)

func newTestService() *Service {
	mandates := fixtures.New(1).Mandates(testNow, []string{"CLIENT-001", "CLIENT-002"})
	return NewService(
		repository.NewMemoryMandates(mandates...),
		repository.NewMemoryFeedback(),
		latency.Disabled(),
		clockwork.NewFakeClockAt(testNow),
		nil,
	)
}

func TestGetMandates(t *testing.T) {
	svc := newTestService()

	all, err := svc.GetMandates(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, all)

	mine, err := svc.GetMandates(context.Background(), "CLIENT-001")
	require.NoError(t, err)
	require.NotEmpty(t, mine)
	for _, m := range mine {
		assert.Equal(t, "CLIENT-001", m.ClientID)
		assert.Equal(t, "Trading Mandate", m.Type)
	}
	assert.Less(t, len(mine), len(all))
}

func TestSubmitFeedback_SequentialTickets(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.SubmitFeedback(ctx, "CLIENT-001", FeedbackInput{Subject: "Hi", Message: "Thanks", Category: "General"})
	require.NoError(t, err)
	assert.Equal(t, "TICKET-001", first.TicketID)
	assert.Equal(t, "general", first.Category)
	assert.Equal(t, testNow, first.CreatedAt)

	second, err := svc.SubmitFeedback(ctx, "CLIENT-002", FeedbackInput{Subject: "Fees", Message: "Too high", Category: "complaint"})
	require.NoError(t, err)
	assert.Equal(t, "TICKET-002", second.TicketID)
}

func TestSubmitFeedback_Validation(t *testing.T) {
	svc := newTestService()
	cases := map[string]FeedbackInput{
		"subject":  {Message: "m", Category: "general"},
		"message":  {Subject: "s", Category: "general"},
		"category": {Subject: "s", Message: "m"},
		"unknown":  {Subject: "s", Message: "m", Category: "praise"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SubmitFeedback(context.Background(), "CLIENT-001", in)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
}
