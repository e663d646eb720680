package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Routing keys on the notification exchange.
const (
	RouteEmail = "notification.email"
	RouteSMS   = "notification.sms"
)

// PreferenceSource resolves a user's delivery channels.
type PreferenceSource interface {
	GetPreferences(ctx context.Context, userID string) (model.NotificationPreferences, error)
}

// Delivery is the message body handed to email/SMS workers.
type Delivery struct {
	Channel      string             `json:"channel"`
	Notification model.Notification `json:"notification"`
}

// Publisher forwards NotificationCreated events to the exchange, one message
// per channel the user opted into.
type Publisher struct {
	channel  Channel
	exchange string
	prefs    PreferenceSource
	logger   *zap.Logger
	unsub    func()
}

// NewPublisher declares the topic exchange and subscribes to bus.
func NewPublisher(channel Channel, exchange string, bus *eventbus.Bus, prefs PreferenceSource, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	p := &Publisher{
		channel:  channel,
		exchange: exchange,
		prefs:    prefs,
		logger:   logger,
	}
	p.unsub = eventbus.Subscribe(bus, func(e model.NotificationCreated) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := p.Deliver(ctx, e.Notification); err != nil {
			p.logger.Error("rabbitmq.deliver_failed",
				zap.String("notification_id", e.Notification.ID),
				zap.Error(err))
		}
	})
	return p, nil
}

// Deliver publishes n on every out-of-band channel enabled for its user and
// returns how many messages were sent.
func (p *Publisher) Deliver(ctx context.Context, n model.Notification) (int, error) {
	if n.UserID == "" {
		return 0, fmt.Errorf("notification %s has no user", n.ID)
	}
	prefs, err := p.prefs.GetPreferences(ctx, n.UserID)
	if err != nil {
		return 0, fmt.Errorf("preferences for %s: %w", n.UserID, err)
	}

	var routes []string
	if prefs.Email {
		routes = append(routes, RouteEmail)
	}
	if prefs.SMS {
		routes = append(routes, RouteSMS)
	}

	sent := 0
	for _, key := range routes {
		body, err := json.Marshal(Delivery{Channel: key, Notification: n})
		if err != nil {
			return sent, fmt.Errorf("marshal delivery: %w", err)
		}
		err = p.channel.PublishWithContext(ctx,
			p.exchange,
			key,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    n.ID,
				Timestamp:    n.Timestamp,
				Body:         body,
			},
		)
		metrics.IncEventPublished("amqp", key, err)
		if err != nil {
			return sent, fmt.Errorf("publish %s: %w", key, err)
		}
		sent++
	}

	p.logger.Debug("rabbitmq.notification_published",
		zap.String("notification_id", n.ID),
		zap.Int("messages", sent))
	return sent, nil
}

// Close stops forwarding. The channel is owned by the caller.
func (p *Publisher) Close() {
	if p.unsub != nil {
		p.unsub()
	}
}
