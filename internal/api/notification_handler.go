package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/notification"
	"github.com/Checker-Finance/client-portal/internal/relationship"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// RelationshipService defines the mandate and feedback operations used by the handler.
type RelationshipService interface {
	GetMandates(ctx context.Context, clientID string) ([]model.Mandate, error)
	SubmitFeedback(ctx context.Context, userID string, in relationship.FeedbackInput) (model.Feedback, error)
}

// InboxHandler serves /api/notifications, /api/mandates and
// /api/relationship.
type InboxHandler struct {
	logger        *zap.Logger
	notifications notification.Service
	relationship  RelationshipService
}

// NewInboxHandler creates an InboxHandler.
func NewInboxHandler(logger *zap.Logger, notifications notification.Service, rel RelationshipService) *InboxHandler {
	return &InboxHandler{logger: logger, notifications: notifications, relationship: rel}
}

// notificationContext forwards the caller's token to a remote notification API.
func notificationContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if sess := sessionFrom(c); sess != nil {
		ctx = notification.WithToken(ctx, sess.Token())
	}
	return ctx
}

func (h *InboxHandler) ListNotifications(c *fiber.Ctx) error {
	list, err := h.notifications.List(notificationContext(c), userFrom(c).UserID, c.QueryBool("unread", false))
	if err != nil {
		return writeError(c, h.logger, "list_notifications", err)
	}
	return c.JSON(fiber.Map{"data": list})
}

func (h *InboxHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.notifications.MarkRead(notificationContext(c), userFrom(c).UserID, c.Params("id")); err != nil {
		return writeError(c, h.logger, "mark_notification_read", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *InboxHandler) MarkAllRead(c *fiber.Ctx) error {
	if err := h.notifications.MarkAllRead(notificationContext(c), userFrom(c).UserID); err != nil {
		return writeError(c, h.logger, "mark_all_notifications_read", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *InboxHandler) GetPreferences(c *fiber.Ctx) error {
	prefs, err := h.notifications.GetPreferences(notificationContext(c), userFrom(c).UserID)
	if err != nil {
		return writeError(c, h.logger, "get_notification_preferences", err)
	}
	return c.JSON(fiber.Map{"preferences": prefs})
}

// UpdatePreferences accepts either the bare preferences object or one
// wrapped in {"preferences": ...}.
func (h *InboxHandler) UpdatePreferences(c *fiber.Ctx) error {
	var body struct {
		model.NotificationPreferences
		Preferences *model.NotificationPreferences `json:"preferences"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, err.Error())
	}
	prefs := body.NotificationPreferences
	if body.Preferences != nil {
		prefs = *body.Preferences
	}

	saved, err := h.notifications.UpdatePreferences(notificationContext(c), userFrom(c).UserID, prefs)
	if err != nil {
		return writeError(c, h.logger, "update_notification_preferences", err)
	}
	return c.JSON(fiber.Map{"preferences": saved})
}

// Mandates lists mandates for ?clientId, defaulting to the caller.
func (h *InboxHandler) Mandates(c *fiber.Ctx) error {
	clientID := c.Query("clientId", userFrom(c).UserID)
	mandates, err := h.relationship.GetMandates(c.UserContext(), clientID)
	if err != nil {
		return writeError(c, h.logger, "get_mandates", err)
	}
	return c.JSON(fiber.Map{"mandates": mandates})
}

func (h *InboxHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}
	fb, err := h.relationship.SubmitFeedback(c.UserContext(), userFrom(c).UserID, req.toInput())
	if err != nil {
		return writeError(c, h.logger, "submit_feedback", err)
	}
	return c.JSON(fiber.Map{"success": true, "ticketId": fb.TicketID})
}
