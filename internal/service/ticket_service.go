package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/repository"
)

// TicketService coordinates the per-user private workspaces.
type TicketService struct {
	deps    Dependencies
	tickets repository.TicketRepository
	client  platform.Client
	logger  *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	return &TicketService{
		deps:    deps,
		tickets: deps.Repos.Tickets,
		client:  deps.Platform,
		logger:  deps.Logger.Named("tickets"),
	}
}

// Get returns the user's ticket. A ticket whose channel no longer resolves
// is deleted and reported as ErrTicketNotFound.
func (s *TicketService) Get(ctx context.Context, userID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}

	err = s.client.ResolveChannel(ctx, ticket.ChannelID)
	if err == nil {
		return ticket, nil
	}
	if !platform.IsUnresolvable(err) {
		return nil, fmt.Errorf("resolve ticket channel: %w", err)
	}

	s.logger.Info("removing stale ticket",
		zap.String("user_id", userID),
		zap.String("channel_id", ticket.ChannelID),
	)
	if err := s.tickets.Delete(ctx, userID); err != nil {
		return nil, err
	}
	return nil, ErrTicketNotFound
}

// Open provisions a ticket for actor. When one already exists it is returned
// together with ErrTicketAlreadyOpen.
func (s *TicketService) Open(ctx context.Context, actor domain.Actor) (*domain.Ticket, error) {
	existing, err := s.Get(ctx, actor.ID)
	if err == nil {
		return existing, ErrTicketAlreadyOpen
	}
	if !errors.Is(err, ErrTicketNotFound) {
		return nil, err
	}

	channelID, err := s.client.CreatePrivateChannel(ctx, TicketChannelName(actor), actor.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisionFailed, err)
	}

	ticket := &domain.Ticket{UserID: actor.ID, ChannelID: channelID}
	inserted, err := s.tickets.InsertIfAbsent(ctx, ticket)
	if err != nil {
		s.discardChannel(ctx, channelID)
		return nil, err
	}
	if !inserted {
		// Lost a concurrent open; keep the winner's workspace only.
		s.discardChannel(ctx, channelID)
		winner, err := s.tickets.Get(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return winner, ErrTicketAlreadyOpen
	}

	if _, err := s.client.Post(ctx, channelID, WelcomeNotification(actor)); err != nil {
		s.logger.Warn("welcome notification failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	s.logger.Info("ticket opened", zap.String("user_id", actor.ID), zap.String("channel_id", channelID))
	s.deps.publish(ctx, events.EventTicketOpened, actor, events.TicketPayload{UserID: actor.ID, ChannelID: channelID})
	return ticket, nil
}

// Close removes the user's ticket. The channel is deleted after delay, or
// immediately when delay is not positive. Closing without a ticket is a no-op.
func (s *TicketService) Close(ctx context.Context, actor domain.Actor, delay time.Duration) error {
	ticket, err := s.tickets.Get(ctx, actor.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, actor.ID); err != nil {
		return err
	}
	s.deps.publish(ctx, events.EventTicketClosed, actor, events.TicketPayload{UserID: actor.ID, ChannelID: ticket.ChannelID})

	if delay <= 0 {
		s.discardChannel(ctx, ticket.ChannelID)
		return nil
	}
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.discardChannel(ctx, ticket.ChannelID)
	})
	return nil
}

func (s *TicketService) discardChannel(ctx context.Context, channelID string) {
	err := s.client.DeleteChannel(ctx, channelID)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		s.logger.Warn("delete ticket channel failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// TicketChannelName derives a channel name from the member's display name.
func TicketChannelName(actor domain.Actor) string {
	var b strings.Builder
	for _, r := range strings.ToLower(displayName(actor)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = actor.ID
	}
	return "delivery-" + name
}
