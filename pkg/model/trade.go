package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the settlement state of a trade.
type TradeStatus string

const (
	TradePending TradeStatus = "pending"
	TradeSettled TradeStatus = "settled"
)

// Trade is an executed transaction awaiting or past settlement.
type Trade struct {
	TradeID        string          `json:"tradeId"`
	ClientID       string          `json:"clientId"`
	Instrument     string          `json:"instrument"`
	ISIN           string          `json:"isin"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Status         TradeStatus     `json:"status"`
	TradeDate      time.Time       `json:"tradeDate"`
	SettlementDate *time.Time      `json:"settlementDate,omitempty"`
}

// Clone returns a copy that shares no pointers with t.
func (t Trade) Clone() Trade {
	out := t
	if t.SettlementDate != nil {
		d := *t.SettlementDate
		out.SettlementDate = &d
	}
	return out
}

// NewTrade is the caller-supplied part of a trade.
type NewTrade struct {
	ClientID   string
	Instrument string
	ISIN       string
	Quantity   decimal.Decimal
	Price      decimal.Decimal
}
