package gateway

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/persistence"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/platform/platformtest"
	"github.com/oasis-community/opsbot/internal/repository"
	sqlitestore "github.com/oasis-community/opsbot/internal/repository/sqlite"
	"github.com/oasis-community/opsbot/internal/service"
)

const (
	guildID   = "guild"
	staffRole = "staff-role"
)

type recorder struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []string
	followups []string
}

func (r *recorder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recorder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content := ""
	if edit.Content != nil {
		content = *edit.Content
	}
	if edit.Embeds != nil && len(*edit.Embeds) > 0 {
		content += (*edit.Embeds)[0].Title
	}
	r.edits = append(r.edits, content)
	return &discordgo.Message{}, nil
}

func (r *recorder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followups = append(r.followups, params.Content)
	return &discordgo.Message{}, nil
}

func (r *recorder) lastResponse() *discordgo.InteractionResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.responses) == 0 {
		return nil
	}
	return r.responses[len(r.responses)-1]
}

func (r *recorder) lastEdit() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.edits) == 0 {
		return ""
	}
	return r.edits[len(r.edits)-1]
}

func (r *recorder) followupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.followups)
}

func (r *recorder) lastFollowup() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.followups) == 0 {
		return ""
	}
	return r.followups[len(r.followups)-1]
}

type gatewayEnv struct {
	gw    *Gateway
	rec   *recorder
	fake  *platformtest.Fake
	hub   *capture.Hub
	repos repository.Repositories
}

func newGatewayEnv(t *testing.T, evidenceTimeout time.Duration) *gatewayEnv {
	t.Helper()
	db, err := persistence.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "gw.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	env := &gatewayEnv{
		rec:   &recorder{},
		fake:  platformtest.New("approvals", "rescue-alerts", "ranking", "lobby"),
		hub:   capture.NewHub(nil, zap.NewNop()),
		repos: sqlitestore.New(db.DB),
	}
	discordCfg := config.DiscordConfig{
		GuildID:              guildID,
		StaffRoleID:          staffRole,
		ApprovalChannelID:    "approvals",
		RescueAlertChannelID: "rescue-alerts",
	}
	workflow := config.WorkflowConfig{
		EvidenceTimeout:       evidenceTimeout,
		RescueEvidenceTimeout: evidenceTimeout,
		RankingInterval:       10 * time.Minute,
		RankingSize:           10,
		HistorySize:           10,
		TicketCloseDelay:      20 * time.Millisecond,
	}
	svc := service.New(service.Dependencies{
		Repos:      env.repos,
		Platform:   env.fake,
		Hub:        env.hub,
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Logger:     zap.NewNop(),
		Discord:    discordCfg,
		Workflow:   workflow,
	})
	env.gw = New(Options{
		Services:  svc,
		Platform:  env.fake,
		Hub:       env.hub,
		Responder: env.rec,
		Discord:   discordCfg,
		Workflow:  workflow,
	})
	t.Cleanup(env.gw.Close)
	return env
}

func member(userID string, roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: userID, Username: userID}, Roles: roles}
}

func component(channelID string, m *discordgo.Member, customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "i-" + customID,
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   guildID,
		ChannelID: channelID,
		Member:    m,
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}
}

func modal(channelID string, m *discordgo.Member, customID string, values map[string]string) *discordgo.Interaction {
	var rows []discordgo.MessageComponent
	for id, v := range values {
		rows = append(rows, &discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: id, Value: v},
		}})
	}
	return &discordgo.Interaction{
		ID:        "i-" + customID,
		Type:      discordgo.InteractionModalSubmit,
		GuildID:   guildID,
		ChannelID: channelID,
		Member:    m,
		Data:      discordgo.ModalSubmitInteractionData{CustomID: customID, Components: rows},
	}
}

func command(channelID string, m *discordgo.Member, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "i-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: channelID,
		Member:    m,
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}
}

func (e *gatewayEnv) openTicket(t *testing.T, userID string) *domain.Ticket {
	t.Helper()
	e.gw.HandleInteraction(context.Background(), component("lobby", member(userID), service.ControlOpenTicket))
	ticket, err := e.repos.Tickets.Get(context.Background(), userID)
	require.NoError(t, err)
	return ticket
}

func (e *gatewayEnv) upload(t *testing.T, userID, channelID string) {
	t.Helper()
	require.Eventually(t, func() bool { return e.hub.Len() == 1 }, 2*time.Second, time.Millisecond)
	ref := e.fake.PutMessage(channelID, userID, platform.Notification{Content: "proof"})
	require.True(t, e.gw.HandleMessage(&discordgo.Message{
		ID:          ref.MessageID,
		GuildID:     guildID,
		ChannelID:   channelID,
		Author:      &discordgo.User{ID: userID},
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn.example/proof.png", Filename: "proof.png"}},
	}))
}

func TestOpenTicketButton(t *testing.T) {
	env := newGatewayEnv(t, time.Second)

	ticket := env.openTicket(t, "u1")
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, env.rec.lastResponse().Type)
	assert.Equal(t, "✅ Your ticket has been created: "+service.ChannelMention(ticket.ChannelID), env.rec.lastEdit())

	env.gw.HandleInteraction(context.Background(), component("lobby", member("u1"), service.ControlOpenTicket))
	assert.Equal(t, "⚠️ You already have an open ticket: "+service.ChannelMention(ticket.ChannelID), env.rec.lastEdit())
}

func TestDeliverApproveFlow(t *testing.T) {
	env := newGatewayEnv(t, 2*time.Second)
	ticket := env.openTicket(t, "u1")
	ctx := context.Background()

	env.gw.HandleInteraction(ctx, component(ticket.ChannelID, member("u1"), service.ControlDeliver))
	require.Equal(t, discordgo.InteractionResponseModal, env.rec.lastResponse().Type)
	assert.Equal(t, modalDeliver, env.rec.lastResponse().Data.CustomID)

	env.gw.HandleInteraction(ctx, modal(ticket.ChannelID, member("u1"), modalDeliver, map[string]string{
		inputItem:     "Iron",
		inputQuantity: "1500",
	}))
	assert.Equal(t, uploadPrompt(2*time.Second), env.rec.lastResponse().Data.Content)

	env.upload(t, "u1", ticket.ChannelID)
	require.Eventually(t, func() bool { return env.rec.followupCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "✅ Delivery of 1.500 x Iron registered and sent for review.", env.rec.lastFollowup())

	public := env.fake.Messages("approvals")
	require.Len(t, public, 1)

	accept := component("approvals", member("u2"), service.ControlAccept)
	accept.Message = &discordgo.Message{ID: public[0].MessageID, ChannelID: "approvals"}
	env.gw.HandleInteraction(ctx, accept)
	assert.Equal(t, replyNotStaff, env.rec.lastResponse().Data.Content)

	accept.Member = member("s1", staffRole)
	env.gw.HandleInteraction(ctx, accept)
	assert.Equal(t, "✅ Delivery approved.", env.rec.lastEdit())

	deny := component("approvals", member("s1", staffRole), service.ControlDeny)
	deny.Message = accept.Message
	env.gw.HandleInteraction(ctx, deny)
	assert.Equal(t, errorReply(service.ErrMissingDeliveryID, 0), env.rec.lastEdit(), "the decided record no longer carries the ID")

	history, err := env.repos.Deliveries.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeliveryStatusApproved, history[0].Status)
}

func TestAdministratorCountsAsStaff(t *testing.T) {
	env := newGatewayEnv(t, time.Second)
	admin := member("a1")
	admin.Permissions = discordgo.PermissionAdministrator
	assert.True(t, env.gw.actorFor(component("lobby", admin, service.ControlAccept)).Staff)
	assert.False(t, env.gw.actorFor(component("lobby", member("u1"), service.ControlAccept)).Staff)
}

func TestDeliverModalRejectsBadQuantity(t *testing.T) {
	env := newGatewayEnv(t, time.Second)
	ticket := env.openTicket(t, "u1")

	for _, qty := range []string{"0", "-5", "abc"} {
		env.gw.HandleInteraction(context.Background(), modal(ticket.ChannelID, member("u1"), modalDeliver, map[string]string{
			inputItem:     "Iron",
			inputQuantity: qty,
		}))
		reply := env.rec.lastResponse().Data.Content
		assert.True(t, strings.HasPrefix(reply, "❌ "), reply)
		assert.Equal(t, 0, env.hub.Len())
	}
	history, err := env.repos.Deliveries.ListByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeliverTimeout(t *testing.T) {
	env := newGatewayEnv(t, 50*time.Millisecond)
	ticket := env.openTicket(t, "u1")

	env.gw.HandleInteraction(context.Background(), modal(ticket.ChannelID, member("u1"), modalDeliver, map[string]string{
		inputItem:     "Iron",
		inputQuantity: "10",
	}))
	require.Eventually(t, func() bool { return env.rec.followupCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, env.rec.lastFollowup(), "Time expired")

	history, err := env.repos.Deliveries.ListByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryButton(t *testing.T) {
	env := newGatewayEnv(t, time.Second)
	ticket := env.openTicket(t, "u1")
	env.gw.HandleInteraction(context.Background(), component(ticket.ChannelID, member("u1"), service.ControlHistory))
	assert.Equal(t, "📋 Your last 10 deliveries", env.rec.lastEdit())
}

func TestCloseTicketButton(t *testing.T) {
	env := newGatewayEnv(t, time.Second)
	ticket := env.openTicket(t, "u1")

	env.gw.HandleInteraction(context.Background(), component(ticket.ChannelID, member("u1"), service.ControlCloseTicket))
	assert.Equal(t, "🔒 This ticket will be closed in 20ms.", env.rec.lastResponse().Data.Content)

	_, err := env.repos.Tickets.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Eventually(t, func() bool { return !env.fake.HasChannel(ticket.ChannelID) }, time.Second, 5*time.Millisecond)
}

func TestRescueFlow(t *testing.T) {
	env := newGatewayEnv(t, 2*time.Second)
	ctx := context.Background()

	env.gw.HandleInteraction(ctx, component("lobby", member("u1"), service.ControlRescue))
	require.Equal(t, discordgo.InteractionResponseModal, env.rec.lastResponse().Type)

	env.gw.HandleInteraction(ctx, modal("lobby", member("u1"), modalRescue, map[string]string{inputDetails: "North cave, out of food"}))
	env.upload(t, "u1", "lobby")
	require.Eventually(t, func() bool { return env.rec.followupCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, env.rec.lastFollowup(), "rescue team")

	alerts := env.fake.Messages("rescue-alerts")
	require.Len(t, alerts, 1)
	assert.Equal(t, "@everyone", alerts[0].Notification.Content)
}

func TestStaffCommands(t *testing.T) {
	env := newGatewayEnv(t, time.Second)
	ctx := context.Background()
	staffer := member("s1", staffRole)

	env.gw.HandleInteraction(ctx, command("lobby", member("u1"), CommandRankingStart))
	assert.Equal(t, replyNotStaff, env.rec.lastResponse().Data.Content)

	env.gw.HandleInteraction(ctx, command("lobby", staffer, CommandOpenerPanel))
	assert.Equal(t, replyPanelPosted, env.rec.lastEdit())
	panels := env.fake.Messages("lobby")
	require.Len(t, panels, 1)
	assert.Equal(t, service.OpenerPanel().Title, panels[0].Notification.Title)

	channelOpt := &discordgo.ApplicationCommandInteractionDataOption{
		Name:  optionChannel,
		Type:  discordgo.ApplicationCommandOptionChannel,
		Value: "ranking",
	}
	env.gw.HandleInteraction(ctx, command("lobby", staffer, CommandRankingStart, channelOpt))
	assert.Equal(t, "🏆 Ranking started in <#ranking>. It refreshes every 10 minutes.", env.rec.lastEdit())

	env.gw.HandleInteraction(ctx, command("lobby", staffer, CommandRankingStart, channelOpt))
	assert.Equal(t, replyRankingActive, env.rec.lastEdit())

	env.gw.HandleInteraction(ctx, command("lobby", staffer, CommandRankingStop))
	assert.Equal(t, "🛑 Automatic ranking stopped.", env.rec.lastEdit())
}

func TestHandleMessageFilters(t *testing.T) {
	env := newGatewayEnv(t, time.Second)
	assert.False(t, env.gw.HandleMessage(nil))
	assert.False(t, env.gw.HandleMessage(&discordgo.Message{ChannelID: "c", Author: &discordgo.User{ID: "u1"}}))
	assert.False(t, env.gw.HandleMessage(&discordgo.Message{GuildID: guildID, ChannelID: "c", Author: &discordgo.User{ID: "bot", Bot: true}}))
	assert.False(t, env.gw.HandleMessage(&discordgo.Message{GuildID: guildID, ChannelID: "c", Author: &discordgo.User{ID: "u1"}}))
}
