package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/events"
	"github.com/deskhand/helpdesk-service/internal/repository"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

// ChatService is the messaging surface over a ticket's conversation. Every
// read and write re-resolves chat access from current ticket state; the
// decision is never cached across calls.
type ChatService struct {
	tickets    repository.TicketRepository
	messages   repository.ChatMessageRepository
	ticketSvc  *TicketService
	dispatcher events.Dispatcher
}

// ChatDependencies bundles collaborators.
type ChatDependencies struct {
	TicketRepo    repository.TicketRepository
	MessageRepo   repository.ChatMessageRepository
	TicketService *TicketService
	Dispatcher    events.Dispatcher
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	return &ChatService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		ticketSvc:  deps.TicketService,
		dispatcher: deps.Dispatcher,
	}
}

// ResolveAccess loads the ticket and evaluates the access rules for the
// requester. Missing tickets surface as NotFound.
func (s *ChatService) ResolveAccess(ctx context.Context, requester *domain.User, ticketID string) (*domain.Ticket, ChatAccess, error) {
	if requester == nil {
		return nil, ChatAccess{}, apperrors.NewUnauthorized("requester required")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ChatAccess{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, ChatAccess{}, apperrors.MapError(err)
	}
	return ticket, ResolveChatAccess(ticket, requester), nil
}

// ListMessages returns the conversation when the requester may read it.
func (s *ChatService) ListMessages(ctx context.Context, requester *domain.User, ticketID string, limit, offset int) ([]domain.ChatMessage, error) {
	_, access, err := s.ResolveAccess(ctx, requester, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanRead {
		return nil, apperrors.NewForbidden("chat access denied: " + access.Reason)
	}
	result, err := s.messages.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// PostMessage appends a message when the requester may write, then drives
// the comment-driven status transitions: an assignee comment parks the
// ticket on the client, a client reply while waiting resumes it.
func (s *ChatService) PostMessage(ctx context.Context, sender *domain.User, ticketID, body string) (*domain.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body required", nil)
	}

	ticket, access, err := s.ResolveAccess(ctx, sender, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanWrite {
		return nil, apperrors.NewForbidden("chat access denied: " + access.Reason)
	}

	message := &domain.ChatMessage{
		TicketID: ticket.ID,
		SenderID: sender.ID,
		Body:     body,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, apperrors.MapError(err)
	}

	// Status follow-up and notifications happen after the message is
	// committed; their failure must not surface as a failed post.
	if s.ticketSvc != nil {
		_ = s.ticketSvc.AdvanceOnComment(ctx, ticket, sender)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventChatMessagePosted,
		TicketID: ticket.ID,
		ActorID:  sender.ID,
		Payload: events.ChatMessagePostedPayload{
			MessageID:    message.ID,
			TicketNumber: ticket.Number,
			CreatorID:    ticket.CreatorID,
			AssigneeID:   ticket.AssigneeID,
			SenderID:     sender.ID,
			BodyPreview:  bodyPreview(body, 120),
		},
	})
	return message, nil
}

func (s *ChatService) publishEvent(ctx context.Context, event events.Event) {
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

// bodyPreview trims on rune boundaries so a multi-byte character is never
// split mid-sequence.
func bodyPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
