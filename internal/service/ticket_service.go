package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/events"
	"github.com/deskhand/helpdesk-service/internal/repository"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

// TicketService owns the ticket status state machine.
type TicketService struct {
	tickets    repository.TicketRepository
	categories repository.CategoryRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CategoryRepo repository.CategoryRepository
	HistoryRepo  repository.TicketHistoryRepository
	Dispatcher   events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CategoryID    string
	SubcategoryID *string
	Title         string
	Description   string
	Priority      domain.TicketPriority
	DueDate       *time.Time
}

// TransitionInput carries an explicit status change request.
type TransitionInput struct {
	NewStatus    domain.TicketStatus
	Note         *string
	Satisfaction *int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		categories: deps.CategoryRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket opens a ticket for a client or admin. The ticket starts in
// New; it is normalized to Open once any agent is attached.
func (s *TicketService) CreateTicket(ctx context.Context, creator *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if creator == nil {
		return nil, apperrors.NewUnauthorized("creator required")
	}
	if creator.Role == domain.RoleAgent {
		return nil, apperrors.NewForbidden("agents cannot open tickets")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || input.CategoryID == "" {
		return nil, apperrors.NewValidationError("title and category_id required", nil)
	}

	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": input.CategoryID})
		}
		return nil, apperrors.MapError(err)
	}
	if !category.IsActive {
		return nil, apperrors.NewValidationError("category inactive", map[string]any{"category_id": category.ID})
	}
	if input.SubcategoryID != nil {
		sub, err := s.categories.GetByID(ctx, *input.SubcategoryID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("subcategory", map[string]any{"subcategory_id": *input.SubcategoryID})
			}
			return nil, apperrors.MapError(err)
		}
		if sub.ParentID == nil || *sub.ParentID != category.ID {
			return nil, apperrors.NewValidationError("subcategory not part of category", nil)
		}
	}

	ticket := &domain.Ticket{
		Number:        generateTicketNumber(),
		CreatorID:     creator.ID,
		CategoryID:    input.CategoryID,
		SubcategoryID: input.SubcategoryID,
		Title:         title,
		Description:   description,
		Status:        domain.TicketStatusNew,
		Priority:      input.Priority,
		DueDate:       input.DueDate,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  creator.ID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.Number,
			CreatorID:    ticket.CreatorID,
			CategoryID:   ticket.CategoryID,
			Priority:     ticket.Priority,
			Title:        ticket.Title,
		},
	})
	return ticket, nil
}

// TransitionStatus applies an explicit status change.
//
// Agents are held to the allowed-transition table and must own the ticket;
// admins bypass the table (queue override). Clients may only close or cancel
// their own ticket and may attach a satisfaction rating when doing so.
// Reopen (terminal to Open) clears closed_at.
func (s *TicketService) TransitionStatus(ctx context.Context, actor *domain.User, ticketID string, input TransitionInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if !isKnownStatus(input.NewStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": input.NewStatus})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	if err := s.authorizeTransition(actor, ticket, input.NewStatus); err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if oldStatus == input.NewStatus {
		return ticket, nil
	}

	reopened := oldStatus.IsTerminal() && input.NewStatus == domain.TicketStatusOpen

	ticket.Status = input.NewStatus
	if input.NewStatus.IsTerminal() {
		now := time.Now()
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}
	if input.Satisfaction != nil && actor.ID == ticket.CreatorID &&
		(input.NewStatus == domain.TicketStatusResolved || input.NewStatus == domain.TicketStatusClosed) {
		ticket.Satisfaction = input.Satisfaction
	}

	if err := s.tickets.UpdateStatus(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordStatusChange(ctx, actor.ID, ticket.ID, oldStatus, ticket.Status, input.Note); err != nil {
		return nil, apperrors.MapError(err)
	}

	eventType := events.EventTicketStatusChanged
	if reopened {
		eventType = events.EventTicketReopened
	}
	note := ""
	if input.Note != nil {
		note = *input.Note
	}
	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketStatusChangedPayload{
			TicketNumber: ticket.Number,
			CreatorID:    ticket.CreatorID,
			AssigneeID:   ticket.AssigneeID,
			OldStatus:    oldStatus,
			NewStatus:    ticket.Status,
			Note:         note,
		},
	})
	return ticket, nil
}

// AdvanceOnComment applies the comment-driven transitions: an assignee
// comment parks the ticket on the client, a client reply while waiting
// resumes the prior non-waiting state.
func (s *TicketService) AdvanceOnComment(ctx context.Context, ticket *domain.Ticket, sender *domain.User) error {
	if ticket == nil || sender == nil || ticket.Status.IsTerminal() {
		return nil
	}

	var next domain.TicketStatus
	switch {
	case ticket.AssigneeID != nil && *ticket.AssigneeID == sender.ID &&
		ticket.Status != domain.TicketStatusWaitingForClient:
		next = domain.TicketStatusWaitingForClient
	case sender.ID == ticket.CreatorID && ticket.Status == domain.TicketStatusWaitingForClient:
		resumed, err := s.priorNonWaitingStatus(ctx, ticket.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		next = resumed
	default:
		return nil
	}

	oldStatus := ticket.Status
	ticket.Status = next
	if err := s.tickets.UpdateStatus(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.recordStatusChange(ctx, sender.ID, ticket.ID, oldStatus, next, nil); err != nil {
		return apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  sender.ID,
		Payload: events.TicketStatusChangedPayload{
			TicketNumber: ticket.Number,
			CreatorID:    ticket.CreatorID,
			AssigneeID:   ticket.AssigneeID,
			OldStatus:    oldStatus,
			NewStatus:    next,
		},
	})
	return nil
}

// GetTicket fetches a ticket visible to the actor. Clients only see their
// own tickets; the miss is reported as NotFound, not Forbidden, so one user
// cannot probe for another's ticket ids.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if actor.Role == domain.RoleClient && ticket.CreatorID != actor.ID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// GetTicketByNumber resolves the human-facing ticket number with the same
// visibility scoping as GetTicket.
func (s *TicketService) GetTicketByNumber(ctx context.Context, actor *domain.User, number string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"number": number})
		}
		return nil, apperrors.MapError(err)
	}
	if actor.Role == domain.RoleClient && ticket.CreatorID != actor.ID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"number": number})
	}
	return ticket, nil
}

// ListTickets returns tickets scoped to the actor's role.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if actor.Role == domain.RoleClient {
		filter.CreatorID = &actor.ID
	}
	result, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// ListHistory returns the audit trail for a ticket the actor can see.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	history, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

func (s *TicketService) authorizeTransition(actor *domain.User, ticket *domain.Ticket, next domain.TicketStatus) error {
	switch actor.Role {
	case domain.RoleAdmin:
		// Admin override: any transition allowed.
		return nil
	case domain.RoleAgent:
		if ticket.AssigneeID == nil || *ticket.AssigneeID != actor.ID {
			return apperrors.NewForbidden("agent does not own ticket")
		}
		// Resubmitting the current status is a no-op, not a table violation.
		if next == ticket.Status {
			return nil
		}
		if !isAllowedTransition(ticket.Status, next) {
			return apperrors.NewConflict("status transition not allowed", map[string]any{
				"from": ticket.Status,
				"to":   next,
			})
		}
		return nil
	case domain.RoleClient:
		if ticket.CreatorID != actor.ID {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
		}
		if next == ticket.Status {
			return nil
		}
		if next != domain.TicketStatusClosed && next != domain.TicketStatusCancelled {
			return apperrors.NewForbidden("clients may only close or cancel their tickets")
		}
		return nil
	default:
		return apperrors.NewForbidden("unknown role")
	}
}

// priorNonWaitingStatus walks the status history backwards to find what the
// ticket was before it was parked on the client. Defaults to InProgress when
// the history is silent.
func (s *TicketService) priorNonWaitingStatus(ctx context.Context, ticketID string) (domain.TicketStatus, error) {
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return domain.TicketStatusInProgress, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.Field != domain.FieldStatus || entry.NewValue == nil || entry.OldValue == nil {
			continue
		}
		if domain.TicketStatus(*entry.NewValue) != domain.TicketStatusWaitingForClient {
			continue
		}
		if domain.TicketStatus(*entry.OldValue) == domain.TicketStatusOpen {
			return domain.TicketStatusOpen, nil
		}
		return domain.TicketStatusInProgress, nil
	}
	return domain.TicketStatusInProgress, nil
}

func (s *TicketService) recordStatusChange(ctx context.Context, actorID, ticketID string, oldStatus, newStatus domain.TicketStatus, note *string) error {
	if s.history == nil {
		return nil
	}
	oldVal := string(oldStatus)
	newVal := string(newStatus)
	return s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		Field:       domain.FieldStatus,
		OldValue:    &oldVal,
		NewValue:    &newVal,
		ChangedByID: &actorID,
		Note:        note,
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
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

func generateTicketNumber() string {
	return "HD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

var knownStatuses = map[domain.TicketStatus]struct{}{
	domain.TicketStatusNew:                  {},
	domain.TicketStatusOpen:                 {},
	domain.TicketStatusInProgress:           {},
	domain.TicketStatusWaitingForClient:     {},
	domain.TicketStatusWaitingForThirdParty: {},
	domain.TicketStatusResolved:             {},
	domain.TicketStatusClosed:               {},
	domain.TicketStatusCancelled:            {},
}

func isKnownStatus(status domain.TicketStatus) bool {
	_, ok := knownStatuses[status]
	return ok
}

// allowedTransitions binds agents to a strict table. Admins bypass it, which
// is where the queue-override permissiveness lives.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew: {
		domain.TicketStatusOpen, domain.TicketStatusCancelled,
	},
	domain.TicketStatusOpen: {
		domain.TicketStatusInProgress, domain.TicketStatusWaitingForClient,
		domain.TicketStatusWaitingForThirdParty, domain.TicketStatusResolved,
		domain.TicketStatusClosed, domain.TicketStatusCancelled,
	},
	domain.TicketStatusInProgress: {
		domain.TicketStatusOpen, domain.TicketStatusWaitingForClient,
		domain.TicketStatusWaitingForThirdParty, domain.TicketStatusResolved,
		domain.TicketStatusClosed, domain.TicketStatusCancelled,
	},
	domain.TicketStatusWaitingForClient: {
		domain.TicketStatusOpen, domain.TicketStatusInProgress,
		domain.TicketStatusWaitingForThirdParty, domain.TicketStatusResolved,
		domain.TicketStatusClosed, domain.TicketStatusCancelled,
	},
	domain.TicketStatusWaitingForThirdParty: {
		domain.TicketStatusOpen, domain.TicketStatusInProgress,
		domain.TicketStatusWaitingForClient, domain.TicketStatusResolved,
		domain.TicketStatusClosed, domain.TicketStatusCancelled,
	},
	domain.TicketStatusResolved: {
		domain.TicketStatusOpen, domain.TicketStatusClosed,
	},
	domain.TicketStatusClosed: {
		domain.TicketStatusOpen,
	},
	domain.TicketStatusCancelled: {},
}

func isAllowedTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
