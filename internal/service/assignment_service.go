package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/events"
	"github.com/deskhand/helpdesk-service/internal/repository"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

// AssignmentService manages the pending/accepted/rejected lifecycle of agent
// claims and guarantees at most one active assignee per ticket.
type AssignmentService struct {
	tickets     repository.TicketRepository
	assignments repository.AssignmentRepository
	users       repository.UserRepository
	history     repository.TicketHistoryRepository
	dispatcher  events.Dispatcher
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo     repository.TicketRepository
	AssignmentRepo repository.AssignmentRepository
	UserRepo       repository.UserRepository
	HistoryRepo    repository.TicketHistoryRepository
	Dispatcher     events.Dispatcher
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		assignments: deps.AssignmentRepo,
		users:       deps.UserRepo,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
	}
}

// ClaimTicket creates a Pending assignment request for an eligible agent.
// A ticket is claimable when it is unassigned and its category is within the
// agent's skill set.
func (s *AssignmentService) ClaimTicket(ctx context.Context, agent *domain.User, ticketID string) (*domain.AssignmentRequest, error) {
	if err := requireActiveAgent(agent); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.AssigneeID != nil {
		return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
	}
	if !agent.HasSkill(ticket.CategoryID) {
		return nil, apperrors.NewForbidden("ticket category outside agent skill set")
	}

	if active, err := s.assignments.GetActiveByTicket(ctx, ticketID); err == nil && active != nil {
		return nil, apperrors.NewConflict("ticket already has an active assignment request", map[string]any{
			"request_id": active.ID,
		})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	request := &domain.AssignmentRequest{
		TicketID:    ticket.ID,
		AgentID:     agent.ID,
		State:       domain.AssignmentStatePending,
		RequestedBy: agent.ID,
	}
	if err := s.assignments.Create(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventAssignmentRequested,
		TicketID: ticket.ID,
		ActorID:  agent.ID,
		Payload: events.AssignmentRequestedPayload{
			RequestID:    request.ID,
			TicketNumber: ticket.Number,
			CreatorID:    ticket.CreatorID,
			AgentID:      agent.ID,
		},
	})
	return request, nil
}

// AcceptAssignment finalizes the agent's claim. The assignment itself is a
// compare-and-set guarded on the ticket still being unassigned, so two agents
// racing for the same ticket produce exactly one winner; the loser gets
// Conflict and must refresh.
func (s *AssignmentService) AcceptAssignment(ctx context.Context, agent *domain.User, ticketID string, note *string) (*domain.Ticket, error) {
	if err := requireActiveAgent(agent); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	request, err := s.assignments.GetPendingByTicketAndAgent(ctx, ticketID, agent.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The pending request may have just been closed out by a rival's
			// winning accept; report that as the assignment conflict it is.
			if ticket.AssigneeID != nil {
				return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.NewNotFound("assignment request", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	oldStatus := ticket.Status

	won, err := s.tickets.AssignIfUnassigned(ctx, ticketID, agent.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !won {
		return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
	}

	if ok, err := s.assignments.Resolve(ctx, request.ID, domain.AssignmentStateAccepted, note); err != nil {
		return nil, apperrors.MapError(err)
	} else if !ok {
		return nil, apperrors.NewConflict("assignment request already resolved", map[string]any{
			"request_id": request.ID,
		})
	}
	if _, err := s.assignments.RejectOtherPending(ctx, ticketID, request.ID); err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket, err = s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.recordAssignment(ctx, agent.ID, ticket, oldStatus); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventAssignmentAccepted,
		TicketID: ticket.ID,
		ActorID:  agent.ID,
		Payload: events.AssignmentAcceptedPayload{
			RequestID:    request.ID,
			TicketNumber: ticket.Number,
			CreatorID:    ticket.CreatorID,
			AgentID:      agent.ID,
		},
	})
	return ticket, nil
}

// RejectAssignment turns the agent's pending claim down. The ticket stays
// unassigned and eligible for other agents; no status change happens.
func (s *AssignmentService) RejectAssignment(ctx context.Context, agent *domain.User, ticketID string, note *string) (*domain.AssignmentRequest, error) {
	if err := requireActiveAgent(agent); err != nil {
		return nil, err
	}

	request, err := s.assignments.GetPendingByTicketAndAgent(ctx, ticketID, agent.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignment request", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	if ok, err := s.assignments.Resolve(ctx, request.ID, domain.AssignmentStateRejected, note); err != nil {
		return nil, apperrors.MapError(err)
	} else if !ok {
		return nil, apperrors.NewConflict("assignment request already resolved", map[string]any{
			"request_id": request.ID,
		})
	}

	request.State = domain.AssignmentStateRejected
	request.ResponseNote = note
	now := time.Now()
	request.RespondedAt = &now

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err == nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventAssignmentRejected,
			TicketID: ticket.ID,
			ActorID:  agent.ID,
			Payload: events.AssignmentRejectedPayload{
				RequestID:    request.ID,
				TicketNumber: ticket.Number,
				CreatorID:    ticket.CreatorID,
				AgentID:      agent.ID,
				Note:         note,
			},
		})
	}
	return request, nil
}

// AssignDirect lets an admin hand a ticket to an agent, short-circuiting the
// claim protocol: the request row is created already Accepted. The same CAS
// guard applies, so a concurrent self-claim cannot double-assign.
func (s *AssignmentService) AssignDirect(ctx context.Context, admin *domain.User, ticketID, agentID string, note *string) (*domain.Ticket, error) {
	if admin == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if admin.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}

	agent, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if agent.Role != domain.RoleAgent || !agent.Active {
		return nil, apperrors.NewForbidden("assignee is not an active agent")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	oldStatus := ticket.Status

	won, err := s.tickets.AssignIfUnassigned(ctx, ticketID, agent.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !won {
		return nil, apperrors.NewConflict("ticket already assigned", map[string]any{"ticket_id": ticketID})
	}

	now := time.Now()
	request := &domain.AssignmentRequest{
		TicketID:     ticketID,
		AgentID:      agent.ID,
		State:        domain.AssignmentStateAccepted,
		RequestedBy:  admin.ID,
		ResponseNote: note,
		RespondedAt:  &now,
	}
	if err := s.assignments.Create(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}
	if _, err := s.assignments.RejectOtherPending(ctx, ticketID, request.ID); err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket, err = s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordAssignment(ctx, admin.ID, ticket, oldStatus); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventAssignmentAccepted,
		TicketID: ticket.ID,
		ActorID:  admin.ID,
		Payload: events.AssignmentAcceptedPayload{
			RequestID:    request.ID,
			TicketNumber: ticket.Number,
			CreatorID:    ticket.CreatorID,
			AgentID:      agent.ID,
		},
	})
	return ticket, nil
}

// ListClaimable returns unassigned tickets within the agent's skill set.
func (s *AssignmentService) ListClaimable(ctx context.Context, agent *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if err := requireActiveAgent(agent); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Unassigned: true,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	claimable := make([]domain.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Status.IsTerminal() {
			continue
		}
		if agent.HasSkill(ticket.CategoryID) {
			claimable = append(claimable, ticket)
		}
	}
	return claimable, nil
}

// ListRequests returns the claim history for a ticket.
func (s *AssignmentService) ListRequests(ctx context.Context, ticketID string) ([]domain.AssignmentRequest, error) {
	result, err := s.assignments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

func requireActiveAgent(agent *domain.User) error {
	if agent == nil {
		return apperrors.NewUnauthorized("agent required")
	}
	if agent.Role != domain.RoleAgent {
		return apperrors.NewForbidden("agent role required")
	}
	if !agent.Active {
		return apperrors.NewForbidden("agent inactive")
	}
	return nil
}

func (s *AssignmentService) recordAssignment(ctx context.Context, actorID string, ticket *domain.Ticket, oldStatus domain.TicketStatus) error {
	if s.history == nil {
		return nil
	}
	newAssignee := ""
	if ticket.AssigneeID != nil {
		newAssignee = *ticket.AssigneeID
	}
	if err := s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticket.ID,
		Field:       domain.FieldAssignee,
		OldValue:    nil,
		NewValue:    &newAssignee,
		ChangedByID: &actorID,
	}); err != nil {
		return err
	}
	if oldStatus != ticket.Status {
		oldVal := string(oldStatus)
		newVal := string(ticket.Status)
		return s.history.Create(ctx, &domain.TicketHistory{
			TicketID:    ticket.ID,
			Field:       domain.FieldStatus,
			OldValue:    &oldVal,
			NewValue:    &newVal,
			ChangedByID: &actorID,
		})
	}
	return nil
}

func (s *AssignmentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
