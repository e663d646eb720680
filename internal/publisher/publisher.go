// Package publisher forwards portal domain events to NATS JetStream.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/metrics"
)

// Envelope is the canonical wrapper for every event leaving the portal.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlationId"`
	ClientID      string          `json:"clientId,omitempty"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"eventType"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// JetStream is the subset of nats.JetStreamContext the publisher needs.
type JetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher wraps a JetStream context and publishes canonical envelopes.
type Publisher struct {
	nc      *nats.Conn
	js      JetStream
	prefix  string
	service string
	logger  *zap.Logger
}

// New creates a Publisher on nc with JetStream enabled.
func New(nc *nats.Conn, prefix, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	p := NewWithJetStream(js, prefix, service, logger)
	p.nc = nc
	return p, nil
}

// NewWithJetStream builds a Publisher around an existing JetStream handle.
func NewWithJetStream(js JetStream, prefix, service string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{js: js, prefix: prefix, service: service, logger: logger}
}

// Subject returns the versioned subject for eventType, e.g.
// "evt.portal.instruction.status_changed.v1".
func (p *Publisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType + ".v1"
	}
	return p.prefix + "." + eventType + ".v1"
}

// EnsureStream creates the stream capturing every subject under prefix when
// it does not exist yet.
func EnsureStream(jsm nats.JetStreamManager, name, prefix string) error {
	_, err := jsm.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	_, err = jsm.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{prefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}

// Publish wraps payload in an Envelope and publishes it on the subject for
// eventType.
func (p *Publisher) Publish(ctx context.Context, eventType, clientID string, ts time.Time, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncEventPublished("nats", eventType, err)
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	subject := p.Subject(eventType)
	env := &Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		ClientID:      clientID,
		Topic:         subject,
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     ts.UTC(),
		Payload:       data,
	}
	return p.PublishEnvelope(ctx, subject, env)
}

// PublishEnvelope serializes and publishes env to subject.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncEventPublished("nats", env.EventType, err)
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			"client_id":      []string{env.ClientID},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.MsgId(env.ID.String()))
	metrics.ObserveDuration(metrics.ServiceDuration, start, "publisher", "publish")
	metrics.IncEventPublished("nats", env.EventType, err)

	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.String("client_id", env.ClientID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", subject),
		zap.String("event_type", env.EventType),
		zap.String("client_id", env.ClientID))
	return nil
}

// Close drains the underlying connection when the publisher owns one.
func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		_ = p.nc.Drain()
	}
}
