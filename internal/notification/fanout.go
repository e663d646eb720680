package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

const deliverTimeout = 5 * time.Second

// Fanout turns trade and instruction events into inbox notifications for
// the owning client. Portal users share their client's id.
type Fanout struct {
	local  *Local
	logger *zap.Logger
	unsubs []func()
}

// NewFanout subscribes to bus and delivers into local until Close.
func NewFanout(bus *eventbus.Bus, local *Local, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{local: local, logger: logger}
	f.unsubs = append(f.unsubs,
		eventbus.Subscribe(bus, f.onStatusChanged),
		eventbus.Subscribe(bus, f.onTradeCreated),
	)
	return f
}

// Close stops receiving events.
func (f *Fanout) Close() {
	for _, u := range f.unsubs {
		u()
	}
	f.unsubs = nil
}

func (f *Fanout) onStatusChanged(e model.InstructionStatusChanged) {
	if e.ClientID == "" {
		return
	}
	f.deliver(model.Notification{
		UserID:    e.ClientID,
		Title:     fmt.Sprintf("Instruction %s", e.To),
		Message:   fmt.Sprintf("Instruction %s moved from %s to %s.", e.InstructionID, e.From, e.To),
		Timestamp: e.Timestamp,
	})
}

func (f *Fanout) onTradeCreated(e model.TradeCreated) {
	if e.Trade.ClientID == "" {
		return
	}
	t := e.Trade
	f.deliver(model.Notification{
		UserID:    t.ClientID,
		Title:     "Trade booked",
		Message:   fmt.Sprintf("Trade %s for %s %s at %s is pending settlement.", t.TradeID, t.Quantity.String(), instrumentName(t), t.Price.StringFixed(2)),
		Timestamp: e.Timestamp,
	})
}

func instrumentName(t model.Trade) string {
	if t.Instrument != "" {
		return t.Instrument
	}
	return t.ISIN
}

func (f *Fanout) deliver(n model.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	if _, err := f.local.Deliver(ctx, n); err != nil {
		f.logger.Warn("notification.fanout.failed", zap.String("user_id", n.UserID), zap.Error(err))
	}
}
