// Package discord adapts a discordgo session to the platform.Client boundary.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/platform"
)

const ticketPermissions = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionAttachFiles |
	discordgo.PermissionReadMessageHistory

// Client implements platform.Client over the Discord REST API.
type Client struct {
	session *discordgo.Session
	cfg     config.DiscordConfig
	logger  *zap.Logger
}

var _ platform.Client = (*Client)(nil)

// NewSession builds a bot session with the intents the gateway needs.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	return session, nil
}

// NewClient constructs the adapter.
func NewClient(session *discordgo.Session, cfg config.DiscordConfig, logger *zap.Logger) *Client {
	return &Client{session: session, cfg: cfg, logger: logger.Named("discord")}
}

// CreatePrivateChannel creates a text channel under the ticket category that
// only the owner, the staff role and the bot can see.
func (c *Client) CreatePrivateChannel(ctx context.Context, name, ownerID string) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: c.cfg.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: ownerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketPermissions},
	}
	if c.cfg.StaffRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: c.cfg.StaffRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: ticketPermissions,
		})
	}
	if c.session.State != nil && c.session.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: c.session.State.User.ID, Type: discordgo.PermissionOverwriteTypeMember,
			Allow: ticketPermissions | discordgo.PermissionManageChannels | discordgo.PermissionManageMessages,
		})
	}

	ch, err := c.session.GuildChannelCreateComplex(c.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             c.cfg.TicketCategoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(err)
	}
	return ch.ID, nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := c.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return classify(err)
}

func (c *Client) ResolveChannel(ctx context.Context, channelID string) error {
	_, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	return classify(err)
}

func (c *Client) Post(ctx context.Context, channelID string, n platform.Notification) (platform.Ref, error) {
	m, err := c.session.ChannelMessageSendComplex(channelID, MessageSend(n), discordgo.WithContext(ctx))
	if err != nil {
		return platform.Ref{}, classify(err)
	}
	return platform.Ref{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (c *Client) Fetch(ctx context.Context, ref platform.Ref) (*platform.Message, error) {
	m, err := c.session.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return FromMessage(m), nil
}

func (c *Client) Edit(ctx context.Context, ref platform.Ref, n platform.Notification) error {
	_, err := c.session.ChannelMessageEditComplex(MessageEdit(ref, n), discordgo.WithContext(ctx))
	return classify(err)
}

func (c *Client) DeleteMessage(ctx context.Context, ref platform.Ref) error {
	return classify(c.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)))
}

func (c *Client) SendDirect(ctx context.Context, userID string, n platform.Notification) error {
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err)
	}
	_, err = c.session.ChannelMessageSendComplex(dm.ID, MessageSend(n), discordgo.WithContext(ctx))
	return classify(err)
}

// Member loads a guild member. Administrator is derived from the member's roles.
func (c *Client) Member(ctx context.Context, userID string) (*platform.Member, error) {
	m, err := c.session.GuildMember(c.cfg.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	member := MemberFrom(m)

	roles, err := c.session.GuildRoles(c.cfg.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		c.logger.Warn("guild roles unavailable", zap.Error(err))
		return &member, nil
	}
	member.Administrator = HasAdministrator(member.RoleIDs, roles)
	return &member, nil
}

// HasAdministrator reports whether any of roleIDs grants the administrator permission.
func HasAdministrator(roleIDs []string, roles []*discordgo.Role) bool {
	held := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = true
	}
	for _, r := range roles {
		if r != nil && held[r.ID] && r.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	return false
}
