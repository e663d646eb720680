package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Checker-Finance/client-portal/internal/audit"
	"github.com/Checker-Finance/client-portal/internal/auth"
	"github.com/Checker-Finance/client-portal/internal/client"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/notification"
	"github.com/Checker-Finance/client-portal/internal/rate"
	"github.com/Checker-Finance/client-portal/internal/relationship"
	"github.com/Checker-Finance/client-portal/internal/report"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/internal/session"
	"github.com/Checker-Finance/client-portal/internal/store"
	"github.com/Checker-Finance/client-portal/internal/trade"
	"github.com/Checker-Finance/client-portal/pkg/eventbus"
)

// ─── Test app helpers ─────────────────────────────────────────────────────────

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type testEnv struct {
	app   *fiber.App
	clock fakeClock
	bus   *eventbus.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	gen := fixtures.New(42)
	records, err := auth.SeedRecords(fixtures.Users(), bcrypt.MinCost)
	require.NoError(t, err)
	repos := repository.NewMemorySet(gen.Seed(fc.Now()), records)
	lat := latency.Disabled()

	tokens, err := auth.NewTokenIssuer([]byte("test-key"), "client-portal", time.Hour, fc)
	require.NoError(t, err)
	authSvc := auth.NewService(repos.Users, tokens, lat, bcrypt.MinCost, logger)

	kv := store.NewLocal(time.Minute)
	t.Cleanup(func() { _ = kv.Close() })
	sessions := session.NewRegistry(authSvc, kv, session.Options{
		Timeout: 10 * time.Minute,
		Clock:   fc,
		Bus:     bus,
		Logger:  logger,
	})

	trades := trade.NewService(trade.Deps{
		Instructions: repos.Instructions,
		Trades:       repos.Trades,
		Audit:        repos.Audit,
		Gen:          gen,
		Latency:      lat,
		Bus:          bus,
		Clock:        fc,
		Logger:       logger,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, Deps{
		Logger:   logger,
		Store:    kv,
		Tokens:   tokens,
		Sessions: sessions,
		Auth:     NewAuthHandler(logger, authSvc, sessions, rate.NewManager(rate.Config{RequestsPerSecond: 0.001, Burst: 3})),
		Clients:  NewClientHandler(logger, client.NewService(repos.Clients, gen, lat, logger)),
		Trades:   NewTradeHandler(logger, trades),
		Reports: NewReportHandler(logger,
			report.NewService(repos.Statements, repos.Instructions, lat, fc, logger),
			audit.NewService(repos.Audit, gen, lat, fc, logger)),
		Inbox: NewInboxHandler(logger,
			notification.NewLocal(repos.Notifications, lat, bus, fc, logger),
			relationship.NewService(repos.Mandates, repos.Feedback, lat, fc, logger)),
	})

	return &testEnv{app: app, clock: fc, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	code, body := e.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"client@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, code, body)
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"client@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["requiresMFA"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "CLIENT-001", user["userId"])
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"wrong password", `{"email":"client@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"ghost@example.com","password":"password123"}`, http.StatusUnauthorized},
		{"missing email", `{"password":"password123"}`, http.StatusBadRequest},
		{"malformed json", `{"email":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestLogin_ThrottlesRepeatedAttempts(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		code, _ := env.do(t, http.MethodPost, "/api/auth/login", "",
			`{"email":"throttle@example.com","password":"x"}`)
		require.Equal(t, http.StatusUnauthorized, code)
	}
	code, body := env.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"THROTTLE@example.com","password":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "too many login attempts", body["error"])
}

func TestMFAFlow(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"admin@example.com","password":"admin123"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["requiresMFA"])
	pending := body["token"].(string)

	// a pending token does not open protected routes
	code, _ = env.do(t, http.MethodGet, "/api/auth/me", pending, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = env.do(t, http.MethodPost, "/api/auth/verify-mfa", "",
		`{"userId":"CLIENT-002","code":"123456"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["verified"])
	tok := body["token"].(string)
	assert.NotEqual(t, pending, tok)

	code, body = env.do(t, http.MethodGet, "/api/auth/me", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CLIENT-002", body["user"].(map[string]any)["userId"])
}

func TestVerifyMFA_BadCodeEndsChallenge(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"admin@example.com","password":"admin123"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPost, "/api/auth/verify-mfa", "", `{"userId":"CLIENT-002","code":"12"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := env.do(t, http.MethodPost, "/api/auth/verify-mfa", "", `{"userId":"CLIENT-002","code":"123456"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "no pending MFA challenge", body["error"])
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodGet, "/api/clients", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/api/clients", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogout_InvalidatesToken(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, body := env.do(t, http.MethodPost, "/api/auth/logout", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, _ = env.do(t, http.MethodGet, "/api/auth/me", tok, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSession_ExpiresAfterInactivity(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	env.clock.Advance(9 * time.Minute)
	code, _ := env.do(t, http.MethodGet, "/api/auth/me", tok, "")
	require.Equal(t, http.StatusOK, code)

	// the request above restarted the countdown
	env.clock.Advance(9 * time.Minute)
	code, _ = env.do(t, http.MethodGet, "/api/auth/me", tok, "")
	require.Equal(t, http.StatusOK, code)

	env.clock.Advance(11 * time.Minute)
	require.Eventually(t, func() bool {
		code, _ := env.do(t, http.MethodGet, "/api/auth/me", tok, "")
		return code == http.StatusUnauthorized
	}, time.Second, 10*time.Millisecond)
}

func TestActivity_ReportsDeadline(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, body := env.do(t, http.MethodPost, "/api/session/activity", tok, `{"type":"keypress"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, env.clock.Now().Add(10*time.Minute).UTC().Format(time.RFC3339), body["expiresAt"])

	code, _ = env.do(t, http.MethodPost, "/api/session/activity", tok, `{"type":"teleport"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

// ─── Portal ───────────────────────────────────────────────────────────────────

func TestClients_UpdatePreservesUntouchedKYC(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, body := env.do(t, http.MethodPatch, "/api/clients/CLIENT-001", tok,
		`{"kycData":{"address":"1 Broad Street, Lagos"}}`)
	require.Equal(t, http.StatusOK, code)
	kyc := body["kycData"].(map[string]any)
	assert.Equal(t, "1 Broad Street, Lagos", kyc["address"])
	assert.Equal(t, "+234 800 000 0000", kyc["phone"])

	code, _ = env.do(t, http.MethodPatch, "/api/clients/CLIENT-404", tok, `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestClients_ListAndHoldings(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, body := env.do(t, http.MethodGet, "/api/clients", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["clients"], 2)

	code, body = env.do(t, http.MethodGet, "/api/clients/CLIENT-001/holdings", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["holdings"])
}

func TestTrades_UnknownIDIs404(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, body := env.do(t, http.MethodGet, "/api/trades/TRD-9999", tok, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])
}

func TestInstructions_CreateThenList(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, created := env.do(t, http.MethodPost, "/api/instructions", tok,
		`{"type":"BUY","isin":"NG0000000001","quantity":"100","price":"12.5"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "submitted", created["status"])
	assert.Equal(t, "buy", created["type"])
	assert.Equal(t, "CLIENT-001", created["clientId"])
	id := created["id"].(string)
	assert.Regexp(t, `^INS-\d{5}$`, id)

	code, body := env.do(t, http.MethodGet, "/api/instructions?clientId=CLIENT-001&status=submitted", tok, "")
	require.Equal(t, http.StatusOK, code)
	list := body["instructions"].([]any)
	require.NotEmpty(t, list)
	assert.Equal(t, id, list[0].(map[string]any)["id"])

	code, body = env.do(t, http.MethodGet, "/api/instructions/"+id+"/audit", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 3)
}

func TestInstructions_Validation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing isin", `{"type":"buy","quantity":"1"}`},
		{"bad type", `{"type":"short","isin":"NG0000000001","quantity":"1"}`},
		{"zero quantity", `{"type":"sell","isin":"NG0000000001","quantity":"0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := env.do(t, http.MethodPost, "/api/instructions", tok, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestReports_StatementDownload(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, body := env.do(t, http.MethodGet, "/api/reports/statements/CLIENT-001", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CLIENT-001", body["clientId"])
	statements := body["statements"].([]any)
	require.NotEmpty(t, statements)
	id := statements[0].(map[string]any)["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/statements/"+id+"/download?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), id+".csv")
}

func TestNotifications_Envelope(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, body := env.do(t, http.MethodGet, "/api/notifications", tok, "")
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, body["data"])

	code, body = env.do(t, http.MethodPost, "/api/notifications/read-all", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = env.do(t, http.MethodGet, "/api/notifications?unread=true", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["data"])

	code, body = env.do(t, http.MethodPut, "/api/notifications/preferences", tok,
		`{"preferences":{"email":false,"sms":true,"inApp":true}}`)
	require.Equal(t, http.StatusOK, code)
	prefs := body["preferences"].(map[string]any)
	assert.Equal(t, false, prefs["email"])
	assert.Equal(t, true, prefs["sms"])
}

func TestRelationship_FeedbackAndMandates(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t)

	code, body := env.do(t, http.MethodPost, "/api/relationship/feedback", tok,
		`{"subject":"Statement query","message":"Please resend March","category":"support"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Regexp(t, `^TICKET-\d{3}$`, body["ticketId"])

	code, body = env.do(t, http.MethodGet, "/api/mandates", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["mandates"])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestUnknownRoute_UsesErrorShape(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/nowhere", "", "")
	// unknown /api paths fall into the protected group first
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.NotEmpty(t, body["error"])
}
