package domain

import "time"

// DeliveryStatus enumerates lifecycle states for a delivery record.
type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusApproved DeliveryStatus = "approved"
	DeliveryStatusDenied   DeliveryStatus = "denied"
)

// Terminal reports whether no further transition is allowed from s.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusApproved || s == DeliveryStatusDenied
}

// Valid reports whether s is a known status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusApproved, DeliveryStatusDenied:
		return true
	}
	return false
}

// Delivery is an append-only audit entry for one submitted delivery.
type Delivery struct {
	ID               int64
	UserID           string
	Item             string
	Quantity         int64
	EvidenceURL      string
	PrivateMessageID *string
	PublicChannelID  *string
	PublicMessageID  *string
	Status           DeliveryStatus
	DecidedBy        *string
	DecidedAt        *time.Time
	SubmittedAt      time.Time
}

// Standing is one leaderboard row: the approved total for a user.
type Standing struct {
	UserID string
	Total  int64
}
