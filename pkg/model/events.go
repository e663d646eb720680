package model

import "time"

// SessionEndReason explains why a session returned to anonymous.
type SessionEndReason string

const (
	SessionLogout    SessionEndReason = "logout"
	SessionTimeout   SessionEndReason = "timeout"
	SessionMFAFailed SessionEndReason = "mfa_failed"
)

// InstructionCreated is published after a new instruction is stored.
type InstructionCreated struct {
	Instruction Instruction `json:"instruction"`
	Timestamp   time.Time   `json:"timestamp"`
}

// InstructionStatusChanged is published once per accepted status transition.
type InstructionStatusChanged struct {
	InstructionID string            `json:"instructionId"`
	ClientID      string            `json:"clientId"`
	From          InstructionStatus `json:"from"`
	To            InstructionStatus `json:"to"`
	Timestamp     time.Time         `json:"timestamp"`
}

// TradeCreated is published after a new trade is stored.
type TradeCreated struct {
	Trade     Trade     `json:"trade"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationCreated is published after a notification lands in a user's inbox.
type NotificationCreated struct {
	Notification Notification `json:"notification"`
}

// SessionEnded is published when a session context returns to anonymous.
type SessionEnded struct {
	SessionID string           `json:"sessionId"`
	UserID    string           `json:"userId"`
	Reason    SessionEndReason `json:"reason"`
	Timestamp time.Time        `json:"timestamp"`
}
