package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/platform/discord"
	"github.com/oasis-community/opsbot/internal/service"
)

// HandleInteraction routes one interaction. Replies are ephemeral.
func (g *Gateway) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	log := g.logger.With(zap.String("interaction_id", i.ID), zap.String("channel_id", i.ChannelID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("interaction handler panicked", zap.Any("panic", r))
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		g.handleCommand(ctx, log, i)
	case discordgo.InteractionMessageComponent:
		g.handleComponent(ctx, log, i)
	case discordgo.InteractionModalSubmit:
		g.handleModal(ctx, log, i)
	}
}

// actorFor identifies the caller. Staff status comes from the interaction's
// member roles and channel permissions.
func (g *Gateway) actorFor(i *discordgo.Interaction) domain.Actor {
	if i.Member != nil && i.Member.User != nil {
		member := discord.MemberFrom(i.Member)
		member.Administrator = i.Member.Permissions&discordgo.PermissionAdministrator != 0
		return domain.Actor{
			ID:          member.ID,
			DisplayName: member.DisplayName,
			Staff:       service.IsStaff(member, g.discord.StaffRoleID),
		}
	}
	if i.User != nil {
		return domain.Actor{ID: i.User.ID, DisplayName: i.User.Username}
	}
	return domain.Actor{}
}

func (g *Gateway) handleCommand(ctx context.Context, log *zap.Logger, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	actor := g.actorFor(i)
	if !actor.Staff {
		g.reply(log, i, replyNotStaff)
		return
	}

	switch data.Name {
	case CommandOpenerPanel:
		g.postPanel(ctx, log, i, service.OpenerPanel())
	case CommandRescuePanel:
		g.postPanel(ctx, log, i, service.RescuePanel())
	case CommandRankingStart:
		channelID := i.ChannelID
		for _, opt := range data.Options {
			if opt.Name == optionChannel {
				if id, ok := opt.Value.(string); ok && id != "" {
					channelID = id
				}
			}
		}
		g.deferReply(log, i)
		ref, err := g.svc.Ranking.Start(ctx, channelID, actor)
		if err != nil {
			g.failEdit(log, i, err)
			return
		}
		g.edit(log, i, fmt.Sprintf("🏆 Ranking started in %s. It refreshes every %s.",
			service.ChannelMention(ref.ChannelID), humanDuration(g.workflow.RankingInterval)))
	case CommandRankingStop:
		g.deferReply(log, i)
		if err := g.svc.Ranking.Stop(ctx, actor); err != nil {
			g.failEdit(log, i, err)
			return
		}
		g.edit(log, i, "🛑 Automatic ranking stopped.")
	default:
		log.Warn("unknown command", zap.String("command", data.Name))
	}
}

func (g *Gateway) postPanel(ctx context.Context, log *zap.Logger, i *discordgo.Interaction, panel platform.Notification) {
	g.deferReply(log, i)
	if _, err := g.client.Post(ctx, i.ChannelID, panel); err != nil {
		log.Warn("panel not posted", zap.Error(err))
		g.edit(log, i, "❌ Could not post the panel in this channel.")
		return
	}
	g.edit(log, i, replyPanelPosted)
}

func (g *Gateway) handleComponent(ctx context.Context, log *zap.Logger, i *discordgo.Interaction) {
	data := i.MessageComponentData()
	actor := g.actorFor(i)

	switch data.CustomID {
	case service.ControlOpenTicket:
		g.openTicket(ctx, log, i, actor)
	case service.ControlDeliver:
		g.respond(log, i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseModal, Data: deliverModal()})
	case service.ControlRescue:
		g.respond(log, i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseModal, Data: rescueModal()})
	case service.ControlHistory:
		g.deferReply(log, i)
		records, err := g.svc.Deliveries.History(ctx, actor.ID)
		if err != nil {
			g.failEdit(log, i, err)
			return
		}
		g.editNotification(log, i, service.HistoryNotification(records, g.svc.Deliveries.HistorySize()))
	case service.ControlCloseTicket:
		g.reply(log, i, closeNotice(g.workflow.TicketCloseDelay))
		if err := g.svc.Tickets.Close(ctx, actor, g.workflow.TicketCloseDelay); err != nil {
			log.Error("close ticket failed", zap.String("user_id", actor.ID), zap.Error(err))
		}
	case service.ControlAccept:
		g.decide(ctx, log, i, actor, domain.DeliveryStatusApproved)
	case service.ControlDeny:
		g.decide(ctx, log, i, actor, domain.DeliveryStatusDenied)
	default:
		log.Warn("unknown control", zap.String("custom_id", data.CustomID))
	}
}

func (g *Gateway) openTicket(ctx context.Context, log *zap.Logger, i *discordgo.Interaction, actor domain.Actor) {
	g.deferReply(log, i)
	ticket, err := g.svc.Tickets.Open(ctx, actor)
	switch {
	case errors.Is(err, service.ErrTicketAlreadyOpen):
		g.edit(log, i, "⚠️ You already have an open ticket: "+service.ChannelMention(ticket.ChannelID))
	case err != nil:
		g.failEdit(log, i, err)
	default:
		g.edit(log, i, "✅ Your ticket has been created: "+service.ChannelMention(ticket.ChannelID))
	}
}

func (g *Gateway) decide(ctx context.Context, log *zap.Logger, i *discordgo.Interaction, actor domain.Actor, decision domain.DeliveryStatus) {
	if !actor.Staff {
		g.reply(log, i, replyNotStaff)
		return
	}
	if i.Message == nil {
		g.reply(log, i, errorReply(service.ErrMissingDeliveryID, 0))
		return
	}
	g.deferReply(log, i)
	ref := platform.Ref{ChannelID: i.ChannelID, MessageID: i.Message.ID}
	result, err := g.svc.Approvals.DecideFromNotification(ctx, ref, decision, actor)
	if err != nil {
		g.failEdit(log, i, err)
		return
	}
	text := "✅ Delivery approved."
	if result.Delivery.Status == domain.DeliveryStatusDenied {
		text = "❌ Delivery denied."
	}
	g.edit(log, i, withWarnings(text, result.Warnings))
}

func (g *Gateway) handleModal(_ context.Context, log *zap.Logger, i *discordgo.Interaction) {
	data := i.ModalSubmitData()
	values := modalValues(data.Components)
	actor := g.actorFor(i)

	switch data.CustomID {
	case modalDeliver:
		sub, err := service.ValidateSubmission(service.SubmissionInput{Item: values[inputItem], Quantity: values[inputQuantity]})
		if err != nil {
			g.reply(log, i, errorReply(err, g.workflow.EvidenceTimeout))
			return
		}
		g.reply(log, i, uploadPrompt(g.workflow.EvidenceTimeout))
		g.spawn(func(ctx context.Context) {
			result, err := g.svc.Deliveries.Submit(ctx, actor, i.ChannelID, sub)
			if err != nil {
				g.followup(log, i, errorReply(err, g.workflow.EvidenceTimeout))
				return
			}
			g.followup(log, i, withWarnings(
				fmt.Sprintf("✅ Delivery of %s x %s registered and sent for review.", service.FormatQuantity(result.Delivery.Quantity), result.Delivery.Item),
				result.Warnings))
		})
	case modalRescue:
		details, err := service.ValidateDetails(values[inputDetails])
		if err != nil {
			g.reply(log, i, errorReply(err, g.workflow.RescueEvidenceTimeout))
			return
		}
		g.reply(log, i, uploadPrompt(g.workflow.RescueEvidenceTimeout))
		g.spawn(func(ctx context.Context) {
			if _, err := g.svc.Rescue.Request(ctx, actor, i.ChannelID, details); err != nil {
				g.followup(log, i, errorReply(err, g.workflow.RescueEvidenceTimeout))
				return
			}
			g.followup(log, i, "🚨 Your alert was sent to the rescue team. Help is on the way!")
		})
	default:
		log.Warn("unknown modal", zap.String("custom_id", data.CustomID))
	}
}

func (g *Gateway) respond(log *zap.Logger, i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := g.responder.InteractionRespond(i, resp); err != nil {
		log.Warn("interaction response failed", zap.Error(err))
	}
}

func (g *Gateway) reply(log *zap.Logger, i *discordgo.Interaction, content string) {
	g.respond(log, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (g *Gateway) deferReply(log *zap.Logger, i *discordgo.Interaction) {
	g.respond(log, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (g *Gateway) edit(log *zap.Logger, i *discordgo.Interaction, content string) {
	if _, err := g.responder.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}); err != nil {
		log.Warn("interaction edit failed", zap.Error(err))
	}
}

func (g *Gateway) editNotification(log *zap.Logger, i *discordgo.Interaction, n platform.Notification) {
	content := n.Content
	embeds := discord.Embeds(n)
	if _, err := g.responder.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content, Embeds: &embeds}); err != nil {
		log.Warn("interaction edit failed", zap.Error(err))
	}
}

func (g *Gateway) failEdit(log *zap.Logger, i *discordgo.Interaction, err error) {
	reply := errorReply(err, g.workflow.EvidenceTimeout)
	if reply == replyInternal {
		log.Error("interaction failed", zap.Error(err))
	}
	g.edit(log, i, reply)
}

func (g *Gateway) followup(log *zap.Logger, i *discordgo.Interaction, content string) {
	_, err := g.responder.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content: strings.TrimSpace(content),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Warn("interaction followup failed", zap.Error(err))
	}
}
