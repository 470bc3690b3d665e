package domain

import "time"

// NotificationType is a closed enum of domain events surfaced to users.
type NotificationType string

const (
	NotificationTicketCreated       NotificationType = "TICKET_CREATED"
	NotificationTicketAssigned      NotificationType = "TICKET_ASSIGNED"
	NotificationAssignmentRequested NotificationType = "ASSIGNMENT_REQUESTED"
	NotificationAssignmentAccepted  NotificationType = "ASSIGNMENT_ACCEPTED"
	NotificationAssignmentRejected  NotificationType = "ASSIGNMENT_REJECTED"
	NotificationStatusChanged       NotificationType = "STATUS_CHANGED"
	NotificationTicketReopened      NotificationType = "TICKET_REOPENED"
	NotificationCommentAdded        NotificationType = "COMMENT_ADDED"
)

// NotificationCategory controls presentation severity.
type NotificationCategory string

const (
	NotificationCategorySuccess NotificationCategory = "success"
	NotificationCategoryInfo    NotificationCategory = "info"
	NotificationCategoryWarning NotificationCategory = "warning"
	NotificationCategoryError   NotificationCategory = "error"
)

// Metadata keys used by the dedup engine.
const (
	MetaTicketID      = "ticketId"
	MetaGroupCount    = "group_count"
	MetaLastGroupedAt = "last_grouped_at"
)

// Notification is a per-user feed entry.
//
// Invariant: within the rolling dedup window at most one non-archived row
// exists per (user, type, title, message, ticketId); later occurrences bump
// group_count and refresh CreatedAt instead of inserting.
type Notification struct {
	ID         string
	UserID     string
	Type       NotificationType
	Title      string
	Message    string
	Category   NotificationCategory
	Metadata   map[string]any
	IsRead     bool
	IsArchived bool
	CreatedAt  time.Time
}

// GroupCount returns the merge counter, defaulting to 1 for a fresh row.
func (n *Notification) GroupCount() int {
	if n.Metadata == nil {
		return 1
	}
	switch v := n.Metadata[MetaGroupCount].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 1
	}
}

// TicketID extracts the optional ticket reference from metadata.
func (n *Notification) TicketID() (string, bool) {
	if n.Metadata == nil {
		return "", false
	}
	id, ok := n.Metadata[MetaTicketID].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
