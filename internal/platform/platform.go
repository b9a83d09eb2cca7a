// Package platform defines the boundary to the messaging platform the bot
// runs on. Services only see these types; adapters translate them.
package platform

import (
	"context"
	"time"
)

// ControlStyle selects how an interactive control is rendered.
type ControlStyle int

const (
	StylePrimary ControlStyle = iota
	StyleSecondary
	StyleSuccess
	StyleDanger
)

// Control is a clickable element attached to a notification.
type Control struct {
	ID       string
	Label    string
	Style    ControlStyle
	Disabled bool
}

// Field is a named value rendered inside a notification.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Notification is the platform-neutral shape of a posted record.
type Notification struct {
	Content     string
	Title       string
	Description string
	Color       int
	Fields      []Field
	ImageURL    string
	Footer      string
	Timestamp   time.Time
	Controls    []Control
}

// Ref addresses one posted record.
type Ref struct {
	ChannelID string
	MessageID string
}

// Message is a posted record as read back from the platform.
type Message struct {
	Ref
	AuthorID     string
	Notification Notification
}

// Attachment is a file carried by an inbound message.
type Attachment struct {
	URL      string
	Filename string
}

// InboundMessage is a user-authored message observed on the event stream.
type InboundMessage struct {
	ID          string
	ChannelID   string
	AuthorID    string
	Content     string
	Attachments []Attachment
}

// Member describes a guild member.
type Member struct {
	ID            string
	DisplayName   string
	RoleIDs       []string
	Administrator bool
}

// HasRole reports whether the member carries roleID.
func (m Member) HasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Client is the set of platform operations the workflows rely on.
type Client interface {
	// CreatePrivateChannel provisions a text channel visible to ownerID and staff.
	CreatePrivateChannel(ctx context.Context, name, ownerID string) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	// ResolveChannel returns nil when the channel still exists and is reachable.
	ResolveChannel(ctx context.Context, channelID string) error
	Post(ctx context.Context, channelID string, n Notification) (Ref, error)
	Fetch(ctx context.Context, ref Ref) (*Message, error)
	Edit(ctx context.Context, ref Ref, n Notification) error
	DeleteMessage(ctx context.Context, ref Ref) error
	SendDirect(ctx context.Context, userID string, n Notification) error
	Member(ctx context.Context, userID string) (*Member, error)
}
