package dto

import (
	"time"

	"github.com/deskhand/helpdesk-service/internal/domain"
)

// NotificationResponse feed entry.
type NotificationResponse struct {
	ID         string                      `json:"id"`
	Type       domain.NotificationType     `json:"type"`
	Title      string                      `json:"title"`
	Message    string                      `json:"message"`
	Category   domain.NotificationCategory `json:"category"`
	Metadata   map[string]any              `json:"metadata,omitempty"`
	GroupCount int                         `json:"group_count"`
	IsRead     bool                        `json:"is_read"`
	IsArchived bool                        `json:"is_archived"`
	CreatedAt  time.Time                   `json:"created_at"`
}

// FromNotification maps the domain row.
func FromNotification(notification *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         notification.ID,
		Type:       notification.Type,
		Title:      notification.Title,
		Message:    notification.Message,
		Category:   notification.Category,
		Metadata:   notification.Metadata,
		GroupCount: notification.GroupCount(),
		IsRead:     notification.IsRead,
		IsArchived: notification.IsArchived,
		CreatedAt:  notification.CreatedAt,
	}
}
