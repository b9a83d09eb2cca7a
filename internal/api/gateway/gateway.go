// Package gateway turns platform events (button presses, forms, slash
// commands and uploaded messages) into workflow calls.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/platform/discord"
	"github.com/oasis-community/opsbot/internal/service"
)

// Responder is the subset of the session used to answer interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Options configures a Gateway.
type Options struct {
	Services  *service.Services
	Platform  platform.Client
	Hub       *capture.Hub
	Responder Responder
	Discord   config.DiscordConfig
	Workflow  config.WorkflowConfig
	Logger    *zap.Logger
}

// Gateway dispatches platform events to the workflow services.
type Gateway struct {
	svc       *service.Services
	client    platform.Client
	hub       *capture.Hub
	responder Responder
	discord   config.DiscordConfig
	workflow  config.WorkflowConfig
	logger    *zap.Logger

	// Long-running captures outlive the interaction that started them.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a gateway.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		svc:       opts.Services,
		client:    opts.Platform,
		hub:       opts.Hub,
		responder: opts.Responder,
		discord:   opts.Discord,
		workflow:  opts.Workflow,
		logger:    logger.Named("gateway"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Run opens the session, registers slash commands and serves events until
// ctx is cancelled.
func (g *Gateway) Run(ctx context.Context, session *discordgo.Session) error {
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		g.logger.Info("gateway ready", zap.String("bot_id", r.User.ID), zap.Int("guilds", len(r.Guilds)))
	})
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		g.HandleMessage(m.Message)
	})
	session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		g.HandleInteraction(g.ctx, i.Interaction)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer session.Close()

	if _, err := session.ApplicationCommandBulkOverwrite(session.State.User.ID, g.discord.GuildID, Commands(), discordgo.WithContext(ctx)); err != nil {
		g.logger.Error("register commands failed", zap.Error(err))
	}

	<-ctx.Done()
	g.Close()
	return nil
}

// Close cancels pending captures and waits for their handlers to finish.
func (g *Gateway) Close() {
	g.cancel()
	g.wg.Wait()
}

// HandleMessage feeds a guild message to the capture hub.
func (g *Gateway) HandleMessage(m *discordgo.Message) bool {
	if m == nil || m.GuildID == "" || m.Author == nil || m.Author.Bot {
		return false
	}
	return g.hub.Deliver(discord.Inbound(m))
}

func (g *Gateway) spawn(fn func(ctx context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("interaction task panicked", zap.Any("panic", r))
			}
		}()
		fn(g.ctx)
	}()
}
