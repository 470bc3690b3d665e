package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskhand/helpdesk-service/internal/api/dto"
	"github.com/deskhand/helpdesk-service/internal/repository"
	"github.com/deskhand/helpdesk-service/internal/service"
)

// NotificationsHandler exposes the per-user notification feed.
type NotificationsHandler struct {
	notificationService *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notificationService: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter := repository.NotificationFilter{
		UnreadOnly:      c.QueryBool("unread_only", false),
		IncludeArchived: c.QueryBool("include_archived", false),
		Limit:           c.QueryInt("limit", 50),
		Offset:          c.QueryInt("offset", 0),
	}
	notifications, err := h.notificationService.List(c.UserContext(), principal.User.ID, filter)
	if err != nil {
		return err
	}
	responses := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, dto.FromNotification(&notifications[i]))
	}
	return c.JSON(fiber.Map{"data": responses})
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	count, err := h.notificationService.UnreadCount(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.notificationService.MarkRead(c.UserContext(), c.Params("id"), principal.User.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"read": true}})
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	count, err := h.notificationService.MarkAllRead(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": count}})
}

// Archive POST /notifications/:id/archive.
func (h *NotificationsHandler) Archive(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.notificationService.Archive(c.UserContext(), c.Params("id"), principal.User.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"archived": true}})
}
