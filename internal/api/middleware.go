package api

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/auth"
	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/internal/session"
	"github.com/Checker-Finance/client-portal/pkg/model"
	"github.com/Checker-Finance/client-portal/pkg/utils"
)

const localSession = "portal.session"

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// SessionRegistry owns the server-side session contexts.
type SessionRegistry interface {
	New() *session.Context
	Lookup(ctx context.Context, token string) (*session.Context, bool)
	PendingFor(userID string) (*session.Context, bool)
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}

// RequestMetrics counts every request by route template, method and status.
func RequestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		metrics.IncHTTPRequest(c.Route().Path, c.Method(), strconv.Itoa(status))
		return err
	}
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireSession admits requests whose bearer token maps to an authenticated
// session, and counts the request as session activity.
func RequireSession(tokens TokenParser, sessions SessionRegistry, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		claims, err := tokens.Parse(token)
		if err != nil || claims.Stage != auth.StageSession {
			logger.Debug("portal.auth.token_rejected",
				zap.String("request_id", requestID(c)),
				zap.String("token", utils.MaskToken(token)),
				zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		sess, ok := sessions.Lookup(c.UserContext(), token)
		if !ok || sess.State() != session.Authenticated {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session expired"})
		}
		sess.Touch(session.ActivityRequest)

		c.Locals(localSession, sess)
		return c.Next()
	}
}

// sessionFrom returns the session stored by RequireSession.
func sessionFrom(c *fiber.Ctx) *session.Context {
	sess, _ := c.Locals(localSession).(*session.Context)
	return sess
}

// userFrom returns the authenticated user. RequireSession guarantees one.
func userFrom(c *fiber.Ctx) model.User {
	if sess := sessionFrom(c); sess != nil {
		if u := sess.User(); u != nil {
			return *u
		}
	}
	return model.User{}
}
