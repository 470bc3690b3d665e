package service

import (
	"github.com/deskhand/helpdesk-service/internal/domain"
)

// ChatAccess is the decision for a single chat read/write attempt.
type ChatAccess struct {
	CanRead  bool
	CanWrite bool
	Reason   string
}

// Chat access decision reasons.
const (
	ChatReasonUnassigned     = "unassigned"
	ChatReasonNotParticipant = "not_participant"
	ChatReasonTicketClosed   = "ticket_closed"
	ChatReasonParticipant    = "participant"
	ChatReasonAdminReadOnly  = "admin_read_only"
)

// ResolveChatAccess derives chat permissions from ticket state and requester
// identity. It has no side effects and must be re-evaluated on every chat
// request; the ticket may change between messages.
//
// Rules in priority order:
//  1. Unassigned ticket: no chat exists for anyone, the creator and admins
//     included, because there is no second party yet.
//  2. Requester neither creator, assignee, nor admin: fully denied.
//  3. Terminal ticket: read-only for everyone still allowed in.
//  4. Otherwise read+write, except an admin who neither created the ticket
//     nor is assigned to it gets view-only oversight.
func ResolveChatAccess(ticket *domain.Ticket, requester *domain.User) ChatAccess {
	if ticket == nil || requester == nil {
		return ChatAccess{Reason: ChatReasonNotParticipant}
	}

	if ticket.AssigneeID == nil {
		return ChatAccess{Reason: ChatReasonUnassigned}
	}

	isCreator := ticket.CreatorID == requester.ID
	isAssignee := *ticket.AssigneeID == requester.ID
	isAdmin := requester.Role == domain.RoleAdmin

	if !isCreator && !isAssignee && !isAdmin {
		return ChatAccess{Reason: ChatReasonNotParticipant}
	}

	if ticket.Status.IsTerminal() {
		return ChatAccess{CanRead: true, Reason: ChatReasonTicketClosed}
	}

	if isAdmin && !isCreator && !isAssignee {
		return ChatAccess{CanRead: true, Reason: ChatReasonAdminReadOnly}
	}

	return ChatAccess{CanRead: true, CanWrite: true, Reason: ChatReasonParticipant}
}
