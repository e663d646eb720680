package publisher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Event types published by the bridge.
const (
	EventInstructionCreated       = "instruction.created"
	EventInstructionStatusChanged = "instruction.status_changed"
	EventTradeCreated             = "trade.created"
)

// Bridge subscribes to the in-process bus and forwards instruction and trade
// events to JetStream.
type Bridge struct {
	pub     *Publisher
	logger  *zap.Logger
	timeout time.Duration
	unsubs  []func()
}

// NewBridge wires pub to bus. Each publish is bounded by timeout.
func NewBridge(bus *eventbus.Bus, pub *Publisher, timeout time.Duration, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	b := &Bridge{pub: pub, logger: logger, timeout: timeout}
	b.unsubs = append(b.unsubs,
		eventbus.Subscribe(bus, func(e model.InstructionCreated) {
			b.forward(EventInstructionCreated, e.Instruction.ClientID, e.Timestamp, e)
		}),
		eventbus.Subscribe(bus, func(e model.InstructionStatusChanged) {
			b.forward(EventInstructionStatusChanged, e.ClientID, e.Timestamp, e)
		}),
		eventbus.Subscribe(bus, func(e model.TradeCreated) {
			b.forward(EventTradeCreated, e.Trade.ClientID, e.Timestamp, e)
		}),
	)
	return b
}

func (b *Bridge) forward(eventType, clientID string, ts time.Time, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.pub.Publish(ctx, eventType, clientID, ts, payload); err != nil {
		b.logger.Warn("publisher.bridge_forward_failed",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// Close stops forwarding.
func (b *Bridge) Close() {
	for _, u := range b.unsubs {
		u()
	}
}
