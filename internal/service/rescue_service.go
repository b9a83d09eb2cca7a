package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/pkg/util/errorutil"
)

const maxRescueDetails = 1000

// RescueService relays emergency requests to the rescue alert channel.
type RescueService struct {
	deps   Dependencies
	client platform.Client
	hub    *capture.Hub
	logger *zap.Logger
}

// NewRescueService constructs the service.
func NewRescueService(deps Dependencies) *RescueService {
	return &RescueService{
		deps:   deps,
		client: deps.Platform,
		hub:    deps.Hub,
		logger: deps.Logger.Named("rescue"),
	}
}

// ValidateDetails checks the location description.
func ValidateDetails(details string) (string, error) {
	details = strings.TrimSpace(details)
	if details == "" {
		return "", errorutil.NewValidationError("location details are required", map[string]any{"field": "details"})
	}
	if utf8.RuneCountInString(details) > maxRescueDetails {
		return "", errorutil.NewValidationError("location details are too long", map[string]any{"field": "details", "max": maxRescueDetails})
	}
	return details, nil
}

// Request waits for a location screenshot from actor in channelID and posts
// the alert.
func (s *RescueService) Request(ctx context.Context, actor domain.Actor, channelID, details string) (platform.Ref, error) {
	details, err := ValidateDetails(details)
	if err != nil {
		return platform.Ref{}, err
	}

	key := capture.Key{UserID: actor.ID, ChannelID: channelID}
	shot, err := s.hub.Await(ctx, key, capture.HasAttachment, s.deps.Workflow.RescueEvidenceTimeout)
	if err != nil {
		if errors.Is(err, capture.ErrTimeout) {
			return platform.Ref{}, fmt.Errorf("%w: %w", ErrSubmissionTimeout, err)
		}
		return platform.Ref{}, err
	}
	defer func() {
		if err := s.client.DeleteMessage(ctx, platform.Ref{ChannelID: shot.ChannelID, MessageID: shot.ID}); err != nil {
			s.logger.Debug("screenshot not deleted", zap.Error(err))
		}
	}()

	alertChannel := s.deps.Discord.RescueAlertChannelID
	if alertChannel == "" {
		return platform.Ref{}, ErrRescueUnavailable
	}
	ref, err := s.client.Post(ctx, alertChannel, RescueAlertNotification(actor, details, shot.Attachments[0].URL, s.deps.now()))
	if err != nil {
		s.logger.Warn("rescue alert failed", zap.String("channel_id", alertChannel), zap.Error(err))
		return platform.Ref{}, fmt.Errorf("%w: %w", ErrRescueUnavailable, err)
	}
	s.logger.Info("rescue alert posted", zap.String("user_id", actor.ID))
	return ref, nil
}
