package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

var (
	_ UserRepository         = (*MemoryUsers)(nil)
	_ ClientRepository       = (*MemoryClients)(nil)
	_ InstructionRepository  = (*MemoryInstructions)(nil)
	_ TradeRepository        = (*MemoryTrades)(nil)
	_ StatementRepository    = (*MemoryStatements)(nil)
	_ AuditRepository        = (*MemoryAudit)(nil)
	_ NotificationRepository = (*MemoryNotifications)(nil)
	_ MandateRepository      = (*MemoryMandates)(nil)
	_ FeedbackRepository     = (*MemoryFeedback)(nil)
)

// NewMemorySet seeds in-memory repositories from ds. Users are passed
// separately because their credentials are hashed by the caller.
func NewMemorySet(ds fixtures.Dataset, users []UserRecord) *Set {
	return &Set{
		Users:         NewMemoryUsers(users...),
		Clients:       NewMemoryClients(ds.Clients...),
		Instructions:  NewMemoryInstructions(ds.Instructions...),
		Trades:        NewMemoryTrades(ds.Trades...),
		Statements:    NewMemoryStatements(ds.Statements...),
		Audit:         NewMemoryAudit(ds.AuditLogs...),
		Notifications: NewMemoryNotifications(ds.Notifications...),
		Mandates:      NewMemoryMandates(ds.Mandates...),
		Feedback:      NewMemoryFeedback(),
	}
}

// ─── Users ───

// MemoryUsers keys identities by id with a case-insensitive email index.
type MemoryUsers struct {
	mu      sync.RWMutex
	byID    map[string]UserRecord
	byEmail map[string]string
}

func NewMemoryUsers(records ...UserRecord) *MemoryUsers {
	r := &MemoryUsers{byID: map[string]UserRecord{}, byEmail: map[string]string{}}
	for _, rec := range records {
		r.byID[rec.User.UserID] = rec
		r.byEmail[strings.ToLower(rec.User.Email)] = rec.User.UserID
	}
	return r
}

func (r *MemoryUsers) GetByEmail(_ context.Context, email string) (UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return UserRecord{}, apperr.NotFound("user not found")
	}
	return r.byID[id], nil
}

func (r *MemoryUsers) GetByID(_ context.Context, userID string) (UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[userID]
	if !ok {
		return UserRecord{}, apperr.NotFound("user not found")
	}
	return rec, nil
}

func (r *MemoryUsers) Save(_ context.Context, rec UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byID[rec.User.UserID]; ok {
		delete(r.byEmail, strings.ToLower(prev.User.Email))
	}
	r.byID[rec.User.UserID] = rec
	r.byEmail[strings.ToLower(rec.User.Email)] = rec.User.UserID
	return nil
}

// ─── Clients ───

// MemoryClients keeps clients in seed order.
type MemoryClients struct {
	mu      sync.RWMutex
	clients []model.Client
}

func NewMemoryClients(clients ...model.Client) *MemoryClients {
	r := &MemoryClients{}
	for _, c := range clients {
		r.clients = append(r.clients, c.Clone())
	}
	return r
}

func (r *MemoryClients) List(_ context.Context) ([]model.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (r *MemoryClients) Get(_ context.Context, clientID string) (model.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if c.ClientID == clientID {
			return c.Clone(), nil
		}
	}
	return model.Client{}, apperr.NotFound("client not found")
}

func (r *MemoryClients) Update(_ context.Context, clientID string, fn func(*model.Client) error) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.clients {
		if r.clients[i].ClientID != clientID {
			continue
		}
		next := r.clients[i].Clone()
		if err := fn(&next); err != nil {
			return model.Client{}, err
		}
		next.ClientID = clientID
		r.clients[i] = next
		return next.Clone(), nil
	}
	return model.Client{}, apperr.NotFound("client not found")
}

// ─── Instructions ───

// MemoryInstructions keeps instructions newest first.
type MemoryInstructions struct {
	mu    sync.RWMutex
	items []model.Instruction
}

func NewMemoryInstructions(items ...model.Instruction) *MemoryInstructions {
	r := &MemoryInstructions{}
	for _, it := range items {
		r.items = append(r.items, it.Clone())
	}
	return r
}

func (r *MemoryInstructions) List(_ context.Context, filter model.InstructionFilter) ([]model.Instruction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Instruction, 0, len(r.items))
	for _, it := range r.items {
		if filter.Match(it) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (r *MemoryInstructions) indexOf(id string) int {
	for i, it := range r.items {
		if it.ID == id || it.InstructionID == id {
			return i
		}
	}
	return -1
}

func (r *MemoryInstructions) Get(_ context.Context, id string) (model.Instruction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.items[i].Clone(), nil
	}
	return model.Instruction{}, apperr.NotFound("instruction not found")
}

func (r *MemoryInstructions) Create(_ context.Context, ins model.Instruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(ins.ID) >= 0 || r.indexOf(ins.InstructionID) >= 0 {
		return fmt.Errorf("instruction %s: %w", ins.ID, ErrDuplicate)
	}
	r.items = append([]model.Instruction{ins.Clone()}, r.items...)
	return nil
}

func (r *MemoryInstructions) Update(_ context.Context, id string, fn func(*model.Instruction) error) (model.Instruction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return model.Instruction{}, apperr.NotFound("instruction not found")
	}
	next := r.items[i].Clone()
	if err := fn(&next); err != nil {
		return model.Instruction{}, err
	}
	r.items[i] = next
	return next.Clone(), nil
}

// ─── Trades ───

// MemoryTrades keeps trades newest first.
type MemoryTrades struct {
	mu     sync.RWMutex
	trades []model.Trade
}

func NewMemoryTrades(trades ...model.Trade) *MemoryTrades {
	r := &MemoryTrades{}
	for _, t := range trades {
		r.trades = append(r.trades, t.Clone())
	}
	return r
}

func (r *MemoryTrades) List(_ context.Context) ([]model.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Trade, 0, len(r.trades))
	for _, t := range r.trades {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (r *MemoryTrades) Get(_ context.Context, tradeID string) (model.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.trades {
		if t.TradeID == tradeID {
			return t.Clone(), nil
		}
	}
	return model.Trade{}, apperr.NotFound("trade not found")
}

func (r *MemoryTrades) Create(_ context.Context, t model.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.trades {
		if existing.TradeID == t.TradeID {
			return fmt.Errorf("trade %s: %w", t.TradeID, ErrDuplicate)
		}
	}
	r.trades = append([]model.Trade{t.Clone()}, r.trades...)
	return nil
}

// ─── Statements ───

// MemoryStatements is a read-only statement list.
type MemoryStatements struct {
	statements []model.Statement
}

func NewMemoryStatements(statements ...model.Statement) *MemoryStatements {
	return &MemoryStatements{statements: append([]model.Statement(nil), statements...)}
}

func (r *MemoryStatements) List(_ context.Context) ([]model.Statement, error) {
	return append([]model.Statement{}, r.statements...), nil
}

func (r *MemoryStatements) Get(_ context.Context, statementID string) (model.Statement, error) {
	for _, s := range r.statements {
		if s.StatementID == statementID {
			return s, nil
		}
	}
	return model.Statement{}, apperr.NotFound("statement not found")
}

// ─── Audit ───

// MemoryAudit appends entries and lists them newest first.
type MemoryAudit struct {
	mu      sync.RWMutex
	entries []model.AuditLogEntry
}

func NewMemoryAudit(entries ...model.AuditLogEntry) *MemoryAudit {
	r := &MemoryAudit{}
	_ = r.Append(context.Background(), entries...)
	return r
}

func (r *MemoryAudit) Append(_ context.Context, entries ...model.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *MemoryAudit) List(_ context.Context) ([]model.AuditLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.AuditLogEntry, len(r.entries))
	for i, e := range r.entries {
		out[len(r.entries)-1-i] = e
	}
	return out, nil
}

// ─── Notifications ───

// MemoryNotifications keeps one newest-first inbox per user.
type MemoryNotifications struct {
	mu    sync.RWMutex
	inbox map[string][]model.Notification
	prefs map[string]model.NotificationPreferences
}

func NewMemoryNotifications(seed ...model.Notification) *MemoryNotifications {
	r := &MemoryNotifications{
		inbox: map[string][]model.Notification{},
		prefs: map[string]model.NotificationPreferences{},
	}
	for _, n := range seed {
		r.inbox[n.UserID] = append(r.inbox[n.UserID], n)
	}
	return r
}

func (r *MemoryNotifications) List(_ context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Notification{}
	for _, n := range r.inbox[userID] {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *MemoryNotifications) Add(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbox[n.UserID] = append([]model.Notification{n}, r.inbox[n.UserID]...)
	return nil
}

func (r *MemoryNotifications) MarkRead(_ context.Context, userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	box := r.inbox[userID]
	for i := range box {
		if box[i].ID == notificationID {
			box[i].Read = true
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (r *MemoryNotifications) MarkAllRead(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	box := r.inbox[userID]
	for i := range box {
		if !box[i].Read {
			box[i].Read = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryNotifications) GetPreferences(_ context.Context, userID string) (model.NotificationPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.prefs[userID]; ok {
		return p, nil
	}
	return model.DefaultNotificationPreferences(), nil
}

func (r *MemoryNotifications) SavePreferences(_ context.Context, userID string, prefs model.NotificationPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[userID] = prefs
	return nil
}

// ─── Mandates ───

// MemoryMandates is a read-only mandate list.
type MemoryMandates struct {
	mandates []model.Mandate
}

func NewMemoryMandates(mandates ...model.Mandate) *MemoryMandates {
	return &MemoryMandates{mandates: append([]model.Mandate(nil), mandates...)}
}

func (r *MemoryMandates) List(_ context.Context, clientID string) ([]model.Mandate, error) {
	out := []model.Mandate{}
	for _, m := range r.mandates {
		if clientID == "" || m.ClientID == clientID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ─── Feedback ───

// MemoryFeedback numbers tickets sequentially from TICKET-001.
type MemoryFeedback struct {
	mu      sync.Mutex
	tickets []model.Feedback
}

func NewMemoryFeedback() *MemoryFeedback {
	return &MemoryFeedback{}
}

func (r *MemoryFeedback) Create(_ context.Context, fb model.Feedback) (model.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fb.TicketID = fmt.Sprintf("TICKET-%03d", len(r.tickets)+1)
	r.tickets = append(r.tickets, fb)
	return fb, nil
}
