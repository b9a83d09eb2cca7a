package discord

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/oasis-community/opsbot/internal/platform"
)

var buttonStyles = map[platform.ControlStyle]discordgo.ButtonStyle{
	platform.StylePrimary:   discordgo.PrimaryButton,
	platform.StyleSecondary: discordgo.SecondaryButton,
	platform.StyleSuccess:   discordgo.SuccessButton,
	platform.StyleDanger:    discordgo.DangerButton,
}

// maxButtonsPerRow is the platform limit for one action row.
const maxButtonsPerRow = 5

// Embeds renders the notification body as a single embed. A notification
// with only content renders no embed.
func Embeds(n platform.Notification) []*discordgo.MessageEmbed {
	if n.Title == "" && n.Description == "" && len(n.Fields) == 0 && n.ImageURL == "" && n.Footer == "" {
		return []*discordgo.MessageEmbed{}
	}
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Description,
		Color:       n.Color,
	}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if n.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: n.ImageURL}
	}
	if n.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: n.Footer}
	}
	if !n.Timestamp.IsZero() {
		embed.Timestamp = n.Timestamp.UTC().Format(time.RFC3339)
	}
	return []*discordgo.MessageEmbed{embed}
}

// Components lays the controls out in action rows.
func Components(controls []platform.Control) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	var row discordgo.ActionsRow
	for _, c := range controls {
		row.Components = append(row.Components, discordgo.Button{
			CustomID: c.ID,
			Label:    c.Label,
			Style:    buttonStyles[c.Style],
			Disabled: c.Disabled,
		})
		if len(row.Components) == maxButtonsPerRow {
			rows = append(rows, row)
			row = discordgo.ActionsRow{}
		}
	}
	if len(row.Components) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// MessageSend converts a notification into a create payload.
func MessageSend(n platform.Notification) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    n.Content,
		Embeds:     Embeds(n),
		Components: Components(n.Controls),
	}
}

// MessageEdit converts a notification into an edit payload that replaces
// content, embeds and components.
func MessageEdit(ref platform.Ref, n platform.Notification) *discordgo.MessageEdit {
	content := n.Content
	embeds := Embeds(n)
	components := Components(n.Controls)
	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	edit.Content = &content
	edit.Embeds = &embeds
	edit.Components = &components
	return edit
}

// FromMessage reads a posted message back into the platform shape.
func FromMessage(m *discordgo.Message) *platform.Message {
	msg := &platform.Message{
		Ref:          platform.Ref{ChannelID: m.ChannelID, MessageID: m.ID},
		Notification: platform.Notification{Content: m.Content},
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	if len(m.Embeds) > 0 && m.Embeds[0] != nil {
		e := m.Embeds[0]
		n := &msg.Notification
		n.Title = e.Title
		n.Description = e.Description
		n.Color = e.Color
		for _, f := range e.Fields {
			if f != nil {
				n.Fields = append(n.Fields, platform.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
			}
		}
		if e.Image != nil {
			n.ImageURL = e.Image.URL
		}
		if e.Footer != nil {
			n.Footer = e.Footer.Text
		}
		if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
			n.Timestamp = ts
		}
	}
	msg.Notification.Controls = controlsFrom(m.Components)
	return msg
}

// Inbound converts a gateway message into the capture shape.
func Inbound(m *discordgo.Message) platform.InboundMessage {
	in := platform.InboundMessage{ID: m.ID, ChannelID: m.ChannelID, Content: m.Content}
	if m.Author != nil {
		in.AuthorID = m.Author.ID
	}
	for _, a := range m.Attachments {
		if a != nil {
			in.Attachments = append(in.Attachments, platform.Attachment{URL: a.URL, Filename: a.Filename})
		}
	}
	return in
}

func controlsFrom(components []discordgo.MessageComponent) []platform.Control {
	var controls []platform.Control
	for _, c := range components {
		var children []discordgo.MessageComponent
		switch row := c.(type) {
		case *discordgo.ActionsRow:
			children = row.Components
		case discordgo.ActionsRow:
			children = row.Components
		}
		for _, child := range children {
			var b *discordgo.Button
			switch v := child.(type) {
			case *discordgo.Button:
				b = v
			case discordgo.Button:
				b = &v
			}
			if b == nil {
				continue
			}
			controls = append(controls, platform.Control{
				ID:       b.CustomID,
				Label:    b.Label,
				Style:    styleFrom(b.Style),
				Disabled: b.Disabled,
			})
		}
	}
	return controls
}

func styleFrom(style discordgo.ButtonStyle) platform.ControlStyle {
	for k, v := range buttonStyles {
		if v == style {
			return k
		}
	}
	return platform.StyleSecondary
}

// MemberFrom converts a guild member. Administrator is left to the caller.
func MemberFrom(m *discordgo.Member) platform.Member {
	out := platform.Member{RoleIDs: append([]string(nil), m.Roles...), DisplayName: m.Nick}
	if m.User != nil {
		out.ID = m.User.ID
		if out.DisplayName == "" {
			out.DisplayName = m.User.GlobalName
		}
		if out.DisplayName == "" {
			out.DisplayName = m.User.Username
		}
	}
	return out
}

// classify maps REST failures onto the platform error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", platform.ErrNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", platform.ErrForbidden, err)
		}
	}
	return err
}
