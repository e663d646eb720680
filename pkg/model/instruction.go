package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstructionStatus is the lifecycle label of a client instruction.
type InstructionStatus string

const (
	InstructionDraft     InstructionStatus = "draft"
	InstructionSubmitted InstructionStatus = "submitted"
	InstructionPending   InstructionStatus = "pending"
	InstructionApproved  InstructionStatus = "approved"
	InstructionRejected  InstructionStatus = "rejected"
	InstructionCompleted InstructionStatus = "completed"
)

// InstructionStatuses lists every status in lifecycle order.
var InstructionStatuses = []InstructionStatus{
	InstructionDraft,
	InstructionSubmitted,
	InstructionPending,
	InstructionApproved,
	InstructionCompleted,
	InstructionRejected,
}

var instructionTransitions = map[InstructionStatus][]InstructionStatus{
	InstructionDraft:     {InstructionSubmitted},
	InstructionSubmitted: {InstructionPending, InstructionRejected},
	InstructionPending:   {InstructionApproved, InstructionRejected},
	InstructionApproved:  {InstructionCompleted, InstructionRejected},
}

// Valid reports whether s is a known status.
func (s InstructionStatus) Valid() bool {
	for _, v := range InstructionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s InstructionStatus) Terminal() bool {
	return len(instructionTransitions[s]) == 0
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s InstructionStatus) CanTransition(next InstructionStatus) bool {
	for _, v := range instructionTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// InstructionType is the side of an instruction.
type InstructionType string

const (
	InstructionBuy      InstructionType = "buy"
	InstructionSell     InstructionType = "sell"
	InstructionTransfer InstructionType = "transfer"
)

// Valid reports whether t is buy, sell or transfer.
func (t InstructionType) Valid() bool {
	switch t {
	case InstructionBuy, InstructionSell, InstructionTransfer:
		return true
	}
	return false
}

// Instruction is a client request to buy, sell or transfer a holding.
type Instruction struct {
	ID            string            `json:"id"`
	InstructionID string            `json:"instructionId"`
	ClientID      string            `json:"clientId"`
	Type          InstructionType   `json:"type"`
	ISIN          string            `json:"isin"`
	Quantity      decimal.Decimal   `json:"quantity"`
	Price         *decimal.Decimal  `json:"price,omitempty"`
	Status        InstructionStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Clone returns a copy that shares no pointers with i.
func (i Instruction) Clone() Instruction {
	out := i
	if i.Price != nil {
		p := *i.Price
		out.Price = &p
	}
	return out
}

// InstructionFilter narrows an instruction listing. Empty fields match everything.
type InstructionFilter struct {
	ClientID string
	Status   InstructionStatus
}

// Match reports whether i satisfies every non-empty field of f.
func (f InstructionFilter) Match(i Instruction) bool {
	if f.ClientID != "" && i.ClientID != f.ClientID {
		return false
	}
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	return true
}

// NewInstruction is the caller-supplied part of an instruction.
type NewInstruction struct {
	ClientID string
	Type     InstructionType
	ISIN     string
	Quantity decimal.Decimal
	Price    *decimal.Decimal
}

// InstructionStatusView is the compact status projection of an instruction.
type InstructionStatusView struct {
	InstructionID string            `json:"instructionId"`
	Status        InstructionStatus `json:"status"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
