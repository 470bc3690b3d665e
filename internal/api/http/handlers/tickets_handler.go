package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deskhand/helpdesk-service/internal/api/dto"
	"github.com/deskhand/helpdesk-service/internal/auth"
	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/repository"
	"github.com/deskhand/helpdesk-service/internal/service"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle over HTTP.
type TicketsHandler struct {
	ticketService *service.TicketService
	categories    repository.CategoryRepository
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, categories repository.CategoryRepository) *TicketsHandler {
	return &TicketsHandler{ticketService: ticketService, categories: categories}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.ticketService.CreateTicket(c.UserContext(), principal.User, service.TicketCreateInput{
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		DueDate:       req.DueDate,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter := repository.TicketFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if v := c.Query("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(s)))
		}
	}
	if v := c.Query("priority"); v != "" {
		for _, p := range strings.Split(v, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(p)))
		}
	}
	if v := c.Query("category_id"); v != "" {
		filter.CategoryID = &v
	}
	if v := c.Query("assignee_id"); v != "" {
		filter.AssigneeID = &v
	}
	if c.QueryBool("unassigned", false) {
		filter.Unassigned = true
	}
	if v := c.Query("search"); v != "" {
		filter.SearchTerm = &v
	}
	tickets, err := h.ticketService.ListTickets(c.UserContext(), principal.User, filter)
	if err != nil {
		return err
	}
	responses := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		responses = append(responses, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": responses, "meta": fiber.Map{
		"limit":  filter.Limit,
		"offset": filter.Offset,
		"count":  len(responses),
	}})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.ticketService.GetTicket(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// GetByNumber GET /tickets/number/:number.
func (h *TicketsHandler) GetByNumber(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.ticketService.GetTicketByNumber(c.UserContext(), principal.User, c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Transition POST /tickets/:id/status.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.ticketService.TransitionStatus(c.UserContext(), principal.User, c.Params("id"), service.TransitionInput{
		NewStatus:    req.Status,
		Note:         req.Note,
		Satisfaction: req.Satisfaction,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	entries, err := h.ticketService.ListHistory(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	responses := make([]dto.TicketHistoryResponse, 0, len(entries))
	for i := range entries {
		responses = append(responses, dto.FromTicketHistory(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": responses})
}

// Categories GET /categories.
func (h *TicketsHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": categories})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
