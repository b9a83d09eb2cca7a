package dto

import "time"

// TicketResponse describes an open ticket.
type TicketResponse struct {
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`
}
