package dto

import (
	"time"

	"github.com/deskhand/helpdesk-service/internal/domain"
)

// PostMessageRequest payload.
type PostMessageRequest struct {
	Body string `json:"body"`
}

// ChatMessageResponse thread entry.
type ChatMessageResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatAccessResponse access decision.
type ChatAccessResponse struct {
	CanRead  bool   `json:"can_read"`
	CanWrite bool   `json:"can_write"`
	Reason   string `json:"reason"`
}

// FromChatMessage maps the domain message.
func FromChatMessage(message *domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        message.ID,
		TicketID:  message.TicketID,
		SenderID:  message.SenderID,
		Body:      message.Body,
		CreatedAt: message.CreatedAt,
	}
}
