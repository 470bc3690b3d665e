package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskhand/helpdesk-service/internal/api/dto"
	"github.com/deskhand/helpdesk-service/internal/service"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

// ChatHandler exposes the per-ticket conversation.
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler constructs handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Access GET /tickets/:id/chat/access.
func (h *ChatHandler) Access(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	_, access, err := h.chatService.ResolveAccess(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChatAccessResponse{
		CanRead:  access.CanRead,
		CanWrite: access.CanWrite,
		Reason:   access.Reason,
	}})
}

// List GET /tickets/:id/chat.
func (h *ChatHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	messages, err := h.chatService.ListMessages(c.UserContext(), principal.User, c.Params("id"),
		c.QueryInt("limit", 100), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	responses := make([]dto.ChatMessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, dto.FromChatMessage(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": responses})
}

// Post POST /tickets/:id/chat.
func (h *ChatHandler) Post(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	message, err := h.chatService.PostMessage(c.UserContext(), principal.User, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromChatMessage(message)})
}
