package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskhand/helpdesk-service/internal/api/dto"
	"github.com/deskhand/helpdesk-service/internal/service"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

// AssignmentsHandler exposes the claim/accept/reject workflow.
type AssignmentsHandler struct {
	assignmentService *service.AssignmentService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignmentService *service.AssignmentService) *AssignmentsHandler {
	return &AssignmentsHandler{assignmentService: assignmentService}
}

// Claimable GET /assignments/claimable.
func (h *AssignmentsHandler) Claimable(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.assignmentService.ListClaimable(c.UserContext(), principal.User,
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	responses := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		responses = append(responses, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": responses})
}

// Claim POST /tickets/:id/claim.
func (h *AssignmentsHandler) Claim(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	request, err := h.assignmentService.ClaimTicket(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromAssignmentRequest(request)})
}

// Accept POST /tickets/:id/assignment/accept.
func (h *AssignmentsHandler) Accept(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignmentResponseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.assignmentService.AcceptAssignment(c.UserContext(), principal.User, c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Reject POST /tickets/:id/assignment/reject.
func (h *AssignmentsHandler) Reject(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignmentResponseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	request, err := h.assignmentService.RejectAssignment(c.UserContext(), principal.User, c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAssignmentRequest(request)})
}

// AssignDirect POST /tickets/:id/assign.
func (h *AssignmentsHandler) AssignDirect(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.DirectAssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AgentID == "" {
		return apperrors.NewValidationError("agent_id required", nil)
	}
	ticket, err := h.assignmentService.AssignDirect(c.UserContext(), principal.User, c.Params("id"), req.AgentID, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Requests GET /tickets/:id/assignment/requests.
func (h *AssignmentsHandler) Requests(c *fiber.Ctx) error {
	if _, err := requirePrincipal(c); err != nil {
		return err
	}
	requests, err := h.assignmentService.ListRequests(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	responses := make([]dto.AssignmentRequestResponse, 0, len(requests))
	for i := range requests {
		responses = append(responses, dto.FromAssignmentRequest(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": responses})
}
