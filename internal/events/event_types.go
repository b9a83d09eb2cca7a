package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/oasis-community/opsbot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened      EventType = "ticket_opened"
	EventTicketClosed      EventType = "ticket_closed"
	EventDeliverySubmitted EventType = "delivery_submitted"
	EventDeliveryDecided   EventType = "delivery_decided"
	EventRankingStarted    EventType = "ranking_started"
	EventRankingStopped    EventType = "ranking_stopped"
)

// AllEventTypes lists every type the bot emits.
var AllEventTypes = []EventType{
	EventTicketOpened,
	EventTicketClosed,
	EventDeliverySubmitted,
	EventDeliveryDecided,
	EventRankingStarted,
	EventRankingStopped,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.SubjectType `json:"type"`
	UserID string             `json:"user_id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh ID and the current time.
func New(eventType EventType, actor domain.Actor, payload interface{}) Event {
	subject := domain.SubjectTypeUser
	if actor.Staff {
		subject = domain.SubjectTypeStaff
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     Actor{Type: subject, UserID: actor.ID},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketPayload is carried by ticket_opened and ticket_closed.
type TicketPayload struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// DeliverySubmittedPayload payload.
type DeliverySubmittedPayload struct {
	DeliveryID int64  `json:"delivery_id"`
	UserID     string `json:"user_id"`
	Item       string `json:"item"`
	Quantity   int64  `json:"quantity"`
}

// DeliveryDecidedPayload payload.
type DeliveryDecidedPayload struct {
	DeliveryID int64                 `json:"delivery_id"`
	UserID     string                `json:"user_id"`
	Item       string                `json:"item"`
	Quantity   int64                 `json:"quantity"`
	Status     domain.DeliveryStatus `json:"status"`
	DecidedBy  string                `json:"decided_by"`
}

// RankingPayload is carried by ranking_started and ranking_stopped.
type RankingPayload struct {
	ChannelID string `json:"channel_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}
