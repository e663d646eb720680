// Package relationship serves client mandates and relationship-team feedback.
package relationship

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// FeedbackInput is a feedback form submission.
type FeedbackInput struct {
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// Service implements the mandate and feedback operations.
type Service struct {
	mandates repository.MandateRepository
	feedback repository.FeedbackRepository
	latency  *latency.Simulator
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewService(mandates repository.MandateRepository, feedback repository.FeedbackRepository, lat *latency.Simulator, clock clockwork.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{mandates: mandates, feedback: feedback, latency: lat, clock: clock, logger: logger}
}

// GetMandates lists the mandates of clientID, or every mandate when empty.
func (s *Service) GetMandates(ctx context.Context, clientID string) ([]model.Mandate, error) {
	defer metrics.ObserveDuration(metrics.ServiceDuration, time.Now(), "relationship", "get_mandates")
	if err := s.latency.Wait(ctx); err != nil {
		return nil, err
	}
	return s.mandates.List(ctx, clientID)
}

// SubmitFeedback files a ticket with the relationship team.
func (s *Service) SubmitFeedback(ctx context.Context, userID string, in FeedbackInput) (model.Feedback, error) {
	defer metrics.ObserveDuration(metrics.ServiceDuration, time.Now(), "relationship", "submit_feedback")
	if err := s.latency.Wait(ctx); err != nil {
		return model.Feedback{}, err
	}

	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	switch {
	case in.Subject == "":
		return model.Feedback{}, apperr.InvalidInput("subject is required")
	case in.Message == "":
		return model.Feedback{}, apperr.InvalidInput("message is required")
	case in.Category == "":
		return model.Feedback{}, apperr.InvalidInput("category is required")
	case !slices.Contains(model.FeedbackCategories, in.Category):
		return model.Feedback{}, apperr.InvalidInput("category must be one of %s", strings.Join(model.FeedbackCategories, ", "))
	}

	fb, err := s.feedback.Create(ctx, model.Feedback{
		UserID:    userID,
		Subject:   in.Subject,
		Message:   in.Message,
		Category:  in.Category,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return model.Feedback{}, err
	}
	s.logger.Info("relationship.feedback.submitted",
		zap.String("ticket_id", fb.TicketID),
		zap.String("user_id", userID),
		zap.String("category", fb.Category),
	)
	return fb, nil
}
