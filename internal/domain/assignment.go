package domain

import "time"

// AssignmentState enumerates the lifecycle of an agent's claim on a ticket.
type AssignmentState string

const (
	AssignmentStatePending  AssignmentState = "PENDING"
	AssignmentStateAccepted AssignmentState = "ACCEPTED"
	AssignmentStateRejected AssignmentState = "REJECTED"
)

// IsTerminal reports whether the request can no longer change state.
func (s AssignmentState) IsTerminal() bool {
	return s == AssignmentStateAccepted || s == AssignmentStateRejected
}

// AssignmentRequest is an agent's claim on an unassigned ticket.
//
// Invariants: at most one Pending or Accepted request exists per ticket at
// any time; a terminal request is never mutated, a new claim produces a new
// row.
type AssignmentRequest struct {
	ID           string
	TicketID     string
	AgentID      string
	State        AssignmentState
	RequestedBy  string
	ResponseNote *string
	CreatedAt    time.Time
	RespondedAt  *time.Time
}
