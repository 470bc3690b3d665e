package domain

import "time"

// TicketField names the ticket attribute a history entry tracks.
type TicketField string

const (
	FieldStatus       TicketField = "status"
	FieldAssignee     TicketField = "assignee"
	FieldPriority     TicketField = "priority"
	FieldSatisfaction TicketField = "satisfaction"
)

// TicketHistory is an immutable audit trail entry appended on every change.
type TicketHistory struct {
	ID          string
	TicketID    string
	Field       TicketField
	OldValue    *string
	NewValue    *string
	ChangedByID *string
	Note        *string
	CreatedAt   time.Time
}
