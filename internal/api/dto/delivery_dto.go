package dto

import (
	"time"

	"github.com/oasis-community/opsbot/internal/domain"
)

// DecisionRequest payload for POST /staff/deliveries/:id/decision.
type DecisionRequest struct {
	Decision domain.DeliveryStatus `json:"decision"`
}

// NotificationRef points at a published record on the platform.
type NotificationRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// DeliveryResponse describes one delivery record.
type DeliveryResponse struct {
	ID                 int64                 `json:"id"`
	UserID             string                `json:"user_id"`
	Item               string                `json:"item"`
	Quantity           int64                 `json:"quantity"`
	EvidenceURL        string                `json:"evidence_url"`
	Status             domain.DeliveryStatus `json:"status"`
	PrivateMessageID   *string               `json:"private_message_id,omitempty"`
	PublicNotification *NotificationRef      `json:"public_notification,omitempty"`
	DecidedBy          *string               `json:"decided_by,omitempty"`
	DecidedAt          *time.Time            `json:"decided_at,omitempty"`
	SubmittedAt        time.Time             `json:"submitted_at"`
}

// DecisionResponse reports a decision and notification warnings.
type DecisionResponse struct {
	Delivery DeliveryResponse `json:"delivery"`
	Warnings []string         `json:"warnings"`
}
