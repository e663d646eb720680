// Package notification serves user inboxes and delivery preferences, either
// from the local repository or by passing calls through to a remote
// notification API.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Service is the inbox contract shared by Local and Client.
type Service interface {
	List(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
	GetPreferences(ctx context.Context, userID string) (model.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) (model.NotificationPreferences, error)
}

var (
	_ Service = (*Local)(nil)
	_ Service = (*Client)(nil)
)

// Local serves notifications from the repository and is where new
// notifications are delivered.
type Local struct {
	repo    repository.NotificationRepository
	latency *latency.Simulator
	bus     *eventbus.Bus
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewLocal wires the repository-backed service.
func NewLocal(repo repository.NotificationRepository, lat *latency.Simulator, bus *eventbus.Bus, clock clockwork.Clock, logger *zap.Logger) *Local {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{repo: repo, latency: lat, bus: bus, clock: clock, logger: logger}
}

func (l *Local) wait(ctx context.Context, op string) (func(), error) {
	start := time.Now()
	done := func() { metrics.ObserveDuration(metrics.ServiceDuration, start, "notification", op) }
	return done, l.latency.Wait(ctx)
}

func (l *Local) List(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	done, err := l.wait(ctx, "list")
	defer done()
	if err != nil {
		return nil, err
	}
	return l.repo.List(ctx, userID, unreadOnly)
}

func (l *Local) MarkRead(ctx context.Context, userID, notificationID string) error {
	done, err := l.wait(ctx, "mark_read")
	defer done()
	if err != nil {
		return err
	}
	return l.repo.MarkRead(ctx, userID, notificationID)
}

func (l *Local) MarkAllRead(ctx context.Context, userID string) error {
	done, err := l.wait(ctx, "mark_all_read")
	defer done()
	if err != nil {
		return err
	}
	n, err := l.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return err
	}
	l.logger.Debug("notification.marked_all_read", zap.String("user_id", userID), zap.Int("count", n))
	return nil
}

func (l *Local) GetPreferences(ctx context.Context, userID string) (model.NotificationPreferences, error) {
	done, err := l.wait(ctx, "get_preferences")
	defer done()
	if err != nil {
		return model.NotificationPreferences{}, err
	}
	return l.repo.GetPreferences(ctx, userID)
}

func (l *Local) UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) (model.NotificationPreferences, error) {
	done, err := l.wait(ctx, "update_preferences")
	defer done()
	if err != nil {
		return model.NotificationPreferences{}, err
	}
	if err := l.repo.SavePreferences(ctx, userID, prefs); err != nil {
		return model.NotificationPreferences{}, err
	}
	l.logger.Info("notification.preferences.updated", zap.String("user_id", userID))
	return prefs, nil
}

// Deliver stores n in its user's inbox and publishes NotificationCreated.
// Missing ids and timestamps are filled in.
func (l *Local) Deliver(ctx context.Context, n model.Notification) (model.Notification, error) {
	if strings.TrimSpace(n.UserID) == "" {
		return model.Notification{}, apperr.InvalidInput("userId is required")
	}
	if strings.TrimSpace(n.Title) == "" {
		return model.Notification{}, apperr.InvalidInput("title is required")
	}
	if n.ID == "" {
		n.ID = n.NotificationID
	}
	if n.ID == "" {
		n.ID = "NOTIF-" + strings.ToUpper(uuid.NewString()[:8])
	}
	n.NotificationID = n.ID
	if n.Timestamp.IsZero() {
		n.Timestamp = l.clock.Now().UTC()
	}
	n.Read = false

	if err := l.repo.Add(ctx, n); err != nil {
		return model.Notification{}, err
	}
	l.logger.Info("notification.delivered", zap.String("user_id", n.UserID), zap.String("notification_id", n.ID))
	if l.bus != nil {
		l.bus.Publish(model.NotificationCreated{Notification: n})
	}
	return n, nil
}
