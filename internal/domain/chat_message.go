package domain

import "time"

// ChatMessage is a single entry in a ticket's conversation thread.
type ChatMessage struct {
	ID        string
	TicketID  string
	SenderID  string
	Body      string
	CreatedAt time.Time
}
