package dto

import (
	"time"

	"github.com/deskhand/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CategoryID    string                `json:"category_id"`
	SubcategoryID *string               `json:"subcategory_id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority"`
	DueDate       *time.Time            `json:"due_date"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status       domain.TicketStatus `json:"status"`
	Note         *string             `json:"note"`
	Satisfaction *int                `json:"satisfaction"`
}

// AssignmentResponseRequest carries an accept/reject note.
type AssignmentResponseRequest struct {
	Note *string `json:"note"`
}

// DirectAssignRequest payload.
type DirectAssignRequest struct {
	AgentID string  `json:"agent_id"`
	Note    *string `json:"note"`
}

// TicketResponse response.
type TicketResponse struct {
	ID            string                `json:"id"`
	Number        string                `json:"number"`
	CreatorID     string                `json:"creator_id"`
	CategoryID    string                `json:"category_id"`
	SubcategoryID *string               `json:"subcategory_id,omitempty"`
	AssigneeID    *string               `json:"assignee_id,omitempty"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        domain.TicketStatus   `json:"status"`
	Priority      domain.TicketPriority `json:"priority"`
	DueDate       *time.Time            `json:"due_date,omitempty"`
	Satisfaction  *int                  `json:"satisfaction,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	ClosedAt      *time.Time            `json:"closed_at,omitempty"`
}

// AssignmentRequestResponse response.
type AssignmentRequestResponse struct {
	ID           string                 `json:"id"`
	TicketID     string                 `json:"ticket_id"`
	AgentID      string                 `json:"agent_id"`
	State        domain.AssignmentState `json:"state"`
	RequestedBy  string                 `json:"requested_by"`
	ResponseNote *string                `json:"response_note,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	RespondedAt  *time.Time             `json:"responded_at,omitempty"`
}

// TicketHistoryResponse audit entry.
type TicketHistoryResponse struct {
	ID          string             `json:"id"`
	Field       domain.TicketField `json:"field"`
	OldValue    *string            `json:"old_value,omitempty"`
	NewValue    *string            `json:"new_value,omitempty"`
	ChangedByID *string            `json:"changed_by_id,omitempty"`
	Note        *string            `json:"note,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// FromTicket maps the domain aggregate.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:            ticket.ID,
		Number:        ticket.Number,
		CreatorID:     ticket.CreatorID,
		CategoryID:    ticket.CategoryID,
		SubcategoryID: ticket.SubcategoryID,
		AssigneeID:    ticket.AssigneeID,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Status:        ticket.Status,
		Priority:      ticket.Priority,
		DueDate:       ticket.DueDate,
		Satisfaction:  ticket.Satisfaction,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		ClosedAt:      ticket.ClosedAt,
	}
}

// FromAssignmentRequest maps the domain request.
func FromAssignmentRequest(request *domain.AssignmentRequest) AssignmentRequestResponse {
	return AssignmentRequestResponse{
		ID:           request.ID,
		TicketID:     request.TicketID,
		AgentID:      request.AgentID,
		State:        request.State,
		RequestedBy:  request.RequestedBy,
		ResponseNote: request.ResponseNote,
		CreatedAt:    request.CreatedAt,
		RespondedAt:  request.RespondedAt,
	}
}

// FromTicketHistory maps an audit entry.
func FromTicketHistory(history *domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:          history.ID,
		Field:       history.Field,
		OldValue:    history.OldValue,
		NewValue:    history.NewValue,
		ChangedByID: history.ChangedByID,
		Note:        history.Note,
		CreatedAt:   history.CreatedAt,
	}
}
