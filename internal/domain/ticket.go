package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew                  TicketStatus = "NEW"
	TicketStatusOpen                 TicketStatus = "OPEN"
	TicketStatusInProgress           TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingForClient     TicketStatus = "WAITING_FOR_CLIENT"
	TicketStatusWaitingForThirdParty TicketStatus = "WAITING_FOR_THIRD_PARTY"
	TicketStatusResolved             TicketStatus = "RESOLVED"
	TicketStatusClosed               TicketStatus = "CLOSED"
	TicketStatusCancelled            TicketStatus = "CANCELLED"
)

// IsTerminal reports whether the status ends the ticket lifecycle.
// Only Reopen leaves a terminal status.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed || s == TicketStatusCancelled
}

// IsWaiting reports whether the ticket is parked on an external party.
func (s TicketStatus) IsWaiting() bool {
	return s == TicketStatusWaitingForClient || s == TicketStatusWaitingForThirdParty
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests.
//
// Invariants: AssigneeID is nil or exactly one agent; ClosedAt is set iff
// Status is terminal.
type Ticket struct {
	ID            string
	Number        string
	CreatorID     string
	CategoryID    string
	SubcategoryID *string
	AssigneeID    *string
	Title         string
	Description   string
	Status        TicketStatus
	Priority      TicketPriority
	DueDate       *time.Time
	Satisfaction  *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}
