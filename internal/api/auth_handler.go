package api

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/rate"
	"github.com/Checker-Finance/client-portal/internal/session"
	"github.com/Checker-Finance/client-portal/pkg/model"
	"github.com/Checker-Finance/client-portal/pkg/utils"
)

// AuthService covers the account operations that do not change session state.
type AuthService interface {
	SetupMFA(ctx context.Context, userID string) (model.MFASetup, error)
	ResetPassword(ctx context.Context, email string) (string, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	Logout(ctx context.Context, sc *session.Context) error
	GetCurrentUser(ctx context.Context, st *session.Storage) (*model.User, error)
}

// AuthHandler serves /api/auth and /api/session.
type AuthHandler struct {
	logger   *zap.Logger
	service  AuthService
	sessions SessionRegistry
	limiter  *rate.Manager
}

// NewAuthHandler creates an AuthHandler. limiter may be nil to disable login
// throttling.
func NewAuthHandler(logger *zap.Logger, service AuthService, sessions SessionRegistry, limiter *rate.Manager) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		limiter:  limiter,
	}
}

// LoginHandler starts a session. Users that require MFA get a pending token
// and must call verify-mfa next.
func (h *AuthHandler) LoginHandler(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	key := "login:" + strings.ToLower(strings.TrimSpace(req.Email))
	if h.limiter != nil && !h.limiter.Allow(key) {
		h.logger.Warn("portal.login.throttled", zap.String("email", utils.MaskEmail(req.Email)))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many login attempts"})
	}

	sess := h.sessions.New()
	res, err := sess.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, h.logger, "login", err)
	}
	if h.limiter != nil {
		h.limiter.Reset(key)
	}

	h.logger.Info("portal.login",
		zap.String("user_id", res.User.UserID),
		zap.String("session_id", sess.ID()),
		zap.Bool("requires_mfa", res.RequiresMFA))

	return c.JSON(fiber.Map{
		"token":       res.Token,
		"user":        res.User,
		"requiresMFA": res.RequiresMFA,
	})
}

// VerifyMFAHandler completes the second factor for the session awaiting it.
func (h *AuthHandler) VerifyMFAHandler(c *fiber.Ctx) error {
	var req VerifyMFARequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	sess, ok := h.sessions.PendingFor(req.UserID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "no pending MFA challenge"})
	}

	res, err := sess.VerifyMFA(c.UserContext(), req.UserID, req.Code)
	if err != nil {
		return writeError(c, h.logger, "verify_mfa", err)
	}

	return c.JSON(fiber.Map{
		"token":    res.Token,
		"verified": res.Verified,
		"user":     res.User,
	})
}

// LogoutHandler ends the caller's session.
func (h *AuthHandler) LogoutHandler(c *fiber.Ctx) error {
	if err := h.service.Logout(c.UserContext(), sessionFrom(c)); err != nil {
		return writeError(c, h.logger, "logout", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// MeHandler returns the user persisted for the caller's session.
func (h *AuthHandler) MeHandler(c *fiber.Ctx) error {
	user, err := h.service.GetCurrentUser(c.UserContext(), sessionFrom(c).Storage())
	if err != nil {
		return writeError(c, h.logger, "me", err)
	}
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session expired"})
	}
	return c.JSON(fiber.Map{"user": user})
}

// SetupMFAHandler enrols the caller in TOTP.
func (h *AuthHandler) SetupMFAHandler(c *fiber.Ctx) error {
	setup, err := h.service.SetupMFA(c.UserContext(), userFrom(c).UserID)
	if err != nil {
		return writeError(c, h.logger, "setup_mfa", err)
	}
	return c.JSON(setup)
}

// ResetPasswordHandler starts the password reset flow.
func (h *AuthHandler) ResetPasswordHandler(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	msg, err := h.service.ResetPassword(c.UserContext(), req.Email)
	if err != nil {
		return writeError(c, h.logger, "reset_password", err)
	}
	return c.JSON(fiber.Map{"success": true, "message": msg})
}

// ChangePasswordHandler replaces the caller's password.
func (h *AuthHandler) ChangePasswordHandler(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.service.ChangePassword(c.UserContext(), userFrom(c).UserID, req.OldPassword, req.NewPassword); err != nil {
		return writeError(c, h.logger, "change_password", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ActivityHandler records browser activity and reports the new deadline.
func (h *AuthHandler) ActivityHandler(c *fiber.Ctx) error {
	var req ActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	a, err := session.ParseActivity(req.Type)
	if err != nil {
		return badRequest(c, err.Error())
	}

	sess := sessionFrom(c)
	active := sess.Touch(a)
	resp := fiber.Map{"active": active}
	if deadline, ok := sess.Deadline(); ok {
		resp["expiresAt"] = deadline.UTC().Format(time.RFC3339)
	}
	return c.JSON(resp)
}
