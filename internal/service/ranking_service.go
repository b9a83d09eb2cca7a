package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/repository"
)

// RefreshOutcome describes what a leaderboard refresh did.
type RefreshOutcome string

const (
	RefreshInactive RefreshOutcome = "inactive"
	RefreshUpdated  RefreshOutcome = "updated"
	RefreshCleared  RefreshOutcome = "cleared"
	RefreshFailed   RefreshOutcome = "error"
)

// RankingStatus is the current leaderboard state.
type RankingStatus struct {
	Pointer   domain.RankingPointer
	Standings []domain.Standing
}

// RankingService publishes and refreshes the leaderboard.
type RankingService struct {
	deps       Dependencies
	pointer    repository.RankingRepository
	deliveries repository.DeliveryRepository
	client     platform.Client
	logger     *zap.Logger
}

// NewRankingService constructs the service.
func NewRankingService(deps Dependencies) *RankingService {
	return &RankingService{
		deps:       deps,
		pointer:    deps.Repos.Ranking,
		deliveries: deps.Repos.Deliveries,
		client:     deps.Platform,
		logger:     deps.Logger.Named("ranking"),
	}
}

func (s *RankingService) size() int {
	if s.deps.Workflow.RankingSize > 0 {
		return s.deps.Workflow.RankingSize
	}
	return 10
}

// Status returns the pointer and the current standings.
func (s *RankingService) Status(ctx context.Context) (*RankingStatus, error) {
	p, err := s.pointer.Get(ctx)
	if err != nil {
		return nil, err
	}
	standings, err := s.deliveries.SumApprovedByUser(ctx, s.size())
	if err != nil {
		return nil, err
	}
	return &RankingStatus{Pointer: p, Standings: standings}, nil
}

// Start publishes a leaderboard in channelID and makes it the live one.
func (s *RankingService) Start(ctx context.Context, channelID string, actor domain.Actor) (platform.Ref, error) {
	if !actor.Staff {
		return platform.Ref{}, ErrNotStaff
	}
	p, err := s.pointer.Get(ctx)
	if err != nil {
		return platform.Ref{}, err
	}
	if p.Active() {
		return platform.Ref{}, ErrRankingActive
	}

	n, err := s.render(ctx)
	if err != nil {
		return platform.Ref{}, err
	}
	ref, err := s.client.Post(ctx, channelID, n)
	if err != nil {
		return platform.Ref{}, fmt.Errorf("post leaderboard: %w", err)
	}

	activated, err := s.pointer.Activate(ctx, ref.ChannelID, ref.MessageID)
	if err != nil || !activated {
		if delErr := s.client.DeleteMessage(ctx, ref); delErr != nil {
			s.logger.Warn("orphan leaderboard not deleted", zap.String("message_id", ref.MessageID), zap.Error(delErr))
		}
		if err != nil {
			return platform.Ref{}, err
		}
		return platform.Ref{}, ErrRankingActive
	}

	s.logger.Info("ranking started", zap.String("channel_id", ref.ChannelID), zap.String("message_id", ref.MessageID))
	s.deps.publish(ctx, events.EventRankingStarted, actor, events.RankingPayload{ChannelID: ref.ChannelID, MessageID: ref.MessageID})
	return ref, nil
}

// Stop deactivates the leaderboard. The published record is left in place.
func (s *RankingService) Stop(ctx context.Context, actor domain.Actor) error {
	if !actor.Staff {
		return ErrNotStaff
	}
	if err := s.pointer.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("ranking stopped", zap.String("actor_id", actor.ID))
	s.deps.publish(ctx, events.EventRankingStopped, actor, events.RankingPayload{})
	return nil
}

// Refresh re-renders the live leaderboard in place. When the record or its
// channel is gone the pointer is cleared so later refreshes short-circuit.
func (s *RankingService) Refresh(ctx context.Context) (RefreshOutcome, error) {
	outcome, err := s.refresh(ctx)
	s.deps.Metrics.RecordRankingRefresh(string(outcome))
	return outcome, err
}

func (s *RankingService) refresh(ctx context.Context) (RefreshOutcome, error) {
	p, err := s.pointer.Get(ctx)
	if err != nil {
		return RefreshFailed, err
	}
	if !p.Active() {
		return RefreshInactive, nil
	}
	ref := platform.Ref{ChannelID: *p.ChannelID, MessageID: *p.MessageID}

	n, err := s.render(ctx)
	if err != nil {
		return RefreshFailed, err
	}
	err = s.client.Edit(ctx, ref, n)
	if err == nil {
		return RefreshUpdated, nil
	}
	if !platform.IsUnresolvable(err) {
		return RefreshFailed, fmt.Errorf("edit leaderboard: %w", err)
	}

	cleared, clearErr := s.pointer.ClearIfMatches(ctx, ref.ChannelID, ref.MessageID)
	if clearErr != nil {
		return RefreshFailed, clearErr
	}
	s.logger.Info("leaderboard no longer resolves; updates stopped",
		zap.String("channel_id", ref.ChannelID),
		zap.String("message_id", ref.MessageID),
		zap.Bool("cleared", cleared),
	)
	return RefreshCleared, nil
}

func (s *RankingService) render(ctx context.Context) (platform.Notification, error) {
	standings, err := s.deliveries.SumApprovedByUser(ctx, s.size())
	if err != nil {
		return platform.Notification{}, err
	}
	known := make(map[string]bool, len(standings))
	for _, st := range standings {
		if _, err := s.client.Member(ctx, st.UserID); err == nil {
			known[st.UserID] = true
		}
	}
	return LeaderboardNotification(standings, s.size(), func(userID string) bool { return known[userID] }, s.deps.now()), nil
}
