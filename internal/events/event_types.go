package events

import (
	"time"

	"github.com/deskhand/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketReopened      EventType = "ticket_reopened"
	EventAssignmentRequested EventType = "assignment_requested"
	EventAssignmentAccepted  EventType = "assignment_accepted"
	EventAssignmentRejected  EventType = "assignment_rejected"
	EventChatMessagePosted   EventType = "chat_message_posted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	CreatorID    string                `json:"creator_id"`
	CategoryID   string                `json:"category_id"`
	Priority     domain.TicketPriority `json:"priority"`
	Title        string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketNumber string              `json:"ticket_number"`
	CreatorID    string              `json:"creator_id"`
	AssigneeID   *string             `json:"assignee_id,omitempty"`
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	Note         string              `json:"note,omitempty"`
}

// AssignmentRequestedPayload payload.
type AssignmentRequestedPayload struct {
	RequestID    string `json:"request_id"`
	TicketNumber string `json:"ticket_number"`
	CreatorID    string `json:"creator_id"`
	AgentID      string `json:"agent_id"`
}

// AssignmentAcceptedPayload payload.
type AssignmentAcceptedPayload struct {
	RequestID    string `json:"request_id"`
	TicketNumber string `json:"ticket_number"`
	CreatorID    string `json:"creator_id"`
	AgentID      string `json:"agent_id"`
}

// AssignmentRejectedPayload payload.
type AssignmentRejectedPayload struct {
	RequestID    string  `json:"request_id"`
	TicketNumber string  `json:"ticket_number"`
	CreatorID    string  `json:"creator_id"`
	AgentID      string  `json:"agent_id"`
	Note         *string `json:"note,omitempty"`
}

// ChatMessagePostedPayload payload.
type ChatMessagePostedPayload struct {
	MessageID    string  `json:"message_id"`
	TicketNumber string  `json:"ticket_number"`
	CreatorID    string  `json:"creator_id"`
	AssigneeID   *string `json:"assignee_id,omitempty"`
	SenderID     string  `json:"sender_id"`
	BodyPreview  string  `json:"body_preview"`
}
