package domain

import "time"

// Ticket is a user's private delivery workspace. A user holds at most one.
type Ticket struct {
	UserID    string
	ChannelID string
	CreatedAt time.Time
}
