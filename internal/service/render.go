package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/platform"
)

// Control IDs shared by the rendered records and the gateway handlers.
const (
	ControlOpenTicket  = "open_delivery_ticket"
	ControlDeliver     = "deliver"
	ControlHistory     = "my_deliveries"
	ControlCloseTicket = "close_delivery_ticket"
	ControlAccept      = "accept_delivery"
	ControlDeny        = "deny_delivery"
	ControlRescue      = "request_rescue"
)

// Palette.
const (
	ColorWelcome = 0x8fbc8f
	ColorPanel   = 0x1f8b4c
	ColorPending = 0xe67e22
	ColorReview  = 0xfee75c
	ColorSuccess = 0x2ecc71
	ColorFailure = 0xe74c3c
	ColorGold    = 0xf1c40f
	ColorInfo    = 0x5865f2
	ColorNeutral = 0x2b2d31
)

const footerPrefix = "Delivery ID: "

var footerPattern = regexp.MustCompile(`Delivery ID: (\d+)`)

// DeliveryFooter renders the footer that carries the delivery ID on a public record.
func DeliveryFooter(id int64) string {
	return footerPrefix + strconv.FormatInt(id, 10)
}

// ParseDeliveryID extracts the delivery ID from a public record footer.
func ParseDeliveryID(footer string) (int64, bool) {
	match := footerPattern.FindStringSubmatch(footer)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// FormatQuantity groups thousands with dots: 1500 -> "1.500".
func FormatQuantity(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

// Mention renders a platform user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// ChannelMention renders a platform channel mention.
func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}

// OpenerPanel is the public panel that lets members open a ticket.
func OpenerPanel() platform.Notification {
	return platform.Notification{
		Title:       "Delivery Registration",
		Description: "To keep the server organised and your deliveries private, press the button below to open your personal delivery channel.",
		Color:       ColorPanel,
		Footer:      "All deliveries happen in a private channel between you and the staff.",
		Controls: []platform.Control{
			{ID: ControlOpenTicket, Label: "🌾 Open delivery ticket", Style: platform.StyleSuccess},
		},
	}
}

// RescuePanel is the public panel that starts a rescue request.
func RescuePanel() platform.Notification {
	return platform.Notification{
		Title:       "Rescue Center",
		Description: "If you need immediate help, are stuck or in an emergency, press the button below to alert the rescue team.",
		Color:       ColorNeutral,
		Controls: []platform.Control{
			{ID: ControlRescue, Label: "🆘 Request help", Style: platform.StyleDanger},
		},
	}
}

// WelcomeNotification is posted into a freshly provisioned ticket channel.
func WelcomeNotification(actor domain.Actor) platform.Notification {
	return platform.Notification{
		Content:     Mention(actor.ID),
		Title:       fmt.Sprintf("Welcome to your delivery ticket, %s!", displayName(actor)),
		Description: "Use the buttons below to manage your deliveries.",
		Color:       ColorWelcome,
		Controls: []platform.Control{
			{ID: ControlDeliver, Label: "📦 Deliver", Style: platform.StyleSuccess},
			{ID: ControlHistory, Label: "📋 My deliveries", Style: platform.StyleSecondary},
			{ID: ControlCloseTicket, Label: "🔒 Close ticket", Style: platform.StyleDanger},
		},
	}
}

// PendingPrivateNotification acknowledges a submission inside the ticket channel.
func PendingPrivateNotification(evidenceURL string) platform.Notification {
	return platform.Notification{
		Title:       "✅ Delivery sent for review!",
		Description: "Your delivery is waiting for staff approval.",
		Color:       ColorReview,
		ImageURL:    evidenceURL,
	}
}

// PendingPublicNotification is the approval request shown to staff.
func PendingPublicNotification(d *domain.Delivery, submitter domain.Actor, now time.Time) platform.Notification {
	return platform.Notification{
		Title:       "⏳ New pending delivery",
		Description: "Submitted by " + Mention(submitter.ID) + " (" + displayName(submitter) + ")",
		Color:       ColorPending,
		Fields: []platform.Field{
			{Name: "Item", Value: d.Item, Inline: true},
			{Name: "Quantity", Value: "**" + FormatQuantity(d.Quantity) + "**", Inline: true},
		},
		ImageURL:  d.EvidenceURL,
		Footer:    DeliveryFooter(d.ID),
		Timestamp: now,
		Controls: []platform.Control{
			{ID: ControlAccept, Label: "Accept", Style: platform.StyleSuccess},
			{ID: ControlDeny, Label: "Deny", Style: platform.StyleDanger},
		},
	}
}

// DecidedPrivateNotification replaces the private acknowledgment after a decision.
func DecidedPrivateNotification(status domain.DeliveryStatus, evidenceURL string) platform.Notification {
	if status == domain.DeliveryStatusApproved {
		return platform.Notification{
			Title:    "✅ Your delivery was APPROVED!",
			Color:    ColorSuccess,
			ImageURL: evidenceURL,
		}
	}
	return platform.Notification{
		Title:       "❌ Your delivery was DENIED.",
		Description: "Contact a staff member for more details.",
		Color:       ColorFailure,
		ImageURL:    evidenceURL,
	}
}

// DecidedPublicNotification rewrites an approval request once decided: new
// heading and colour, the deciding actor in the footer, controls disabled.
func DecidedPublicNotification(original platform.Notification, status domain.DeliveryStatus, actor domain.Actor) platform.Notification {
	n := original
	if status == domain.DeliveryStatusApproved {
		n.Title = "✅ Delivery approved!"
		n.Color = ColorSuccess
		n.Footer = "Approved by " + displayName(actor)
	} else {
		n.Title = "❌ Delivery denied!"
		n.Color = ColorFailure
		n.Footer = "Denied by " + displayName(actor)
	}
	n.Controls = make([]platform.Control, len(original.Controls))
	for i, c := range original.Controls {
		c.Disabled = true
		n.Controls[i] = c
	}
	return n
}

// DecisionDirectNotification informs the submitter of a decision.
func DecisionDirectNotification(d *domain.Delivery) platform.Notification {
	n := platform.Notification{
		Fields: []platform.Field{
			{Name: "Item", Value: d.Item, Inline: true},
			{Name: "Quantity", Value: FormatQuantity(d.Quantity), Inline: true},
		},
		Footer: DeliveryFooter(d.ID),
	}
	if d.Status == domain.DeliveryStatusApproved {
		n.Title = "✅ Your delivery was approved"
		n.Color = ColorSuccess
	} else {
		n.Title = "❌ Your delivery was denied"
		n.Description = "Contact a staff member for more details."
		n.Color = ColorFailure
	}
	return n
}

var statusMarker = map[domain.DeliveryStatus]string{
	domain.DeliveryStatusApproved: "✅",
	domain.DeliveryStatusDenied:   "❌",
	domain.DeliveryStatusPending:  "⏳",
}

// HistoryNotification lists a user's most recent deliveries.
func HistoryNotification(deliveries []domain.Delivery, limit int) platform.Notification {
	n := platform.Notification{
		Title: fmt.Sprintf("📋 Your last %d deliveries", limit),
		Color: ColorInfo,
	}
	if len(deliveries) == 0 {
		n.Description = "You have not registered any deliveries yet."
		return n
	}
	lines := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		link := "No image"
		if d.EvidenceURL != "" {
			link = "[View image](" + d.EvidenceURL + ")"
		}
		lines = append(lines, fmt.Sprintf("%s **%s**: `%s` - %s - <t:%d:R>",
			statusMarker[d.Status], d.Item, FormatQuantity(d.Quantity), link, d.SubmittedAt.Unix()))
	}
	n.Description = strings.Join(lines, "\n")
	return n
}

// LeaderboardNotification renders the ranking. known reports whether a user
// is still a guild member; absent members fall back to their raw ID.
func LeaderboardNotification(standings []domain.Standing, limit int, known func(userID string) bool, now time.Time) platform.Notification {
	n := platform.Notification{
		Title:     fmt.Sprintf("🏆 Delivery Ranking - Top %d (approved)", limit),
		Color:     ColorGold,
		Timestamp: now,
	}
	if len(standings) == 0 {
		n.Description = "No approved deliveries have been registered yet."
		return n
	}
	medals := []string{"🥇", "🥈", "🥉"}
	lines := make([]string, 0, len(standings))
	for i, st := range standings {
		rank := fmt.Sprintf("**#%d**", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		who := fmt.Sprintf("User (ID: %s)", st.UserID)
		if known != nil && known(st.UserID) {
			who = Mention(st.UserID)
		}
		lines = append(lines, fmt.Sprintf("%s %s - `%s` items delivered", rank, who, FormatQuantity(st.Total)))
	}
	n.Description = strings.Join(lines, "\n")
	return n
}

// RescueAlertNotification is the @everyone alert for a rescue request.
func RescueAlertNotification(actor domain.Actor, details, imageURL string, now time.Time) platform.Notification {
	return platform.Notification{
		Content:     "@everyone",
		Title:       "🚨 Urgent rescue request!",
		Description: fmt.Sprintf("Member %s (%s) needs help.", Mention(actor.ID), displayName(actor)),
		Color:       ColorFailure,
		Fields: []platform.Field{
			{Name: "📍 Location and details", Value: details},
		},
		ImageURL:  imageURL,
		Footer:    "The nearest rescue team should respond.",
		Timestamp: now,
	}
}

func displayName(actor domain.Actor) string {
	if strings.TrimSpace(actor.DisplayName) != "" {
		return actor.DisplayName
	}
	return actor.ID
}
