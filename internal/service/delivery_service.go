package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/repository"
	"github.com/oasis-community/opsbot/pkg/util/errorutil"
)

const maxItemLength = 100

// Warnings surfaced to the submitter when a best-effort step fails.
const (
	WarnPrivateNotification = "Could not post the acknowledgment in your ticket."
	WarnApprovalMissing     = "Configuration error: the approval channel was not found."
	WarnApprovalForbidden   = "Permission error: cannot post in the approval channel."
	WarnApprovalFailed      = "Could not post the approval request."
)

// SubmissionInput carries the raw form values.
type SubmissionInput struct {
	Item     string
	Quantity string
}

// Submission is a validated form.
type Submission struct {
	Item     string
	Quantity int64
}

// SubmitResult reports the created record and any notification problems.
type SubmitResult struct {
	Delivery *domain.Delivery
	Warnings []string
}

// DeliveryService runs the two-phase submission protocol.
type DeliveryService struct {
	deps       Dependencies
	deliveries repository.DeliveryRepository
	client     platform.Client
	hub        *capture.Hub
	logger     *zap.Logger
}

// NewDeliveryService constructs the service.
func NewDeliveryService(deps Dependencies) *DeliveryService {
	return &DeliveryService{
		deps:       deps,
		deliveries: deps.Repos.Deliveries,
		client:     deps.Platform,
		hub:        deps.Hub,
		logger:     deps.Logger.Named("deliveries"),
	}
}

// ValidateSubmission checks the form before anything waits or writes.
func ValidateSubmission(in SubmissionInput) (Submission, error) {
	item := strings.TrimSpace(in.Item)
	if item == "" {
		return Submission{}, errorutil.NewValidationError("item is required", map[string]any{"field": "item"})
	}
	if utf8.RuneCountInString(item) > maxItemLength {
		return Submission{}, errorutil.NewValidationError("item is too long", map[string]any{"field": "item", "max": maxItemLength})
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(in.Quantity), 10, 64)
	if err != nil || qty <= 0 {
		return Submission{}, errorutil.NewValidationError("quantity must be a positive number", map[string]any{"field": "quantity"})
	}
	return Submission{Item: item, Quantity: qty}, nil
}

// Submit waits for the evidence upload from actor in channelID, then records
// the delivery and posts the private acknowledgment and public approval
// request. Nothing is written when the wait fails.
func (s *DeliveryService) Submit(ctx context.Context, actor domain.Actor, channelID string, sub Submission) (*SubmitResult, error) {
	if sub.Quantity <= 0 || strings.TrimSpace(sub.Item) == "" {
		return nil, errorutil.NewValidationError("invalid submission", nil)
	}

	key := capture.Key{UserID: actor.ID, ChannelID: channelID}
	evidence, err := s.hub.Await(ctx, key, capture.HasAttachment, s.deps.Workflow.EvidenceTimeout)
	if err != nil {
		if errors.Is(err, capture.ErrTimeout) {
			s.deps.Metrics.RecordSubmission("timeout")
			return nil, fmt.Errorf("%w: %w", ErrSubmissionTimeout, err)
		}
		s.deps.Metrics.RecordSubmission("aborted")
		return nil, err
	}

	delivery := &domain.Delivery{
		UserID:      actor.ID,
		Item:        sub.Item,
		Quantity:    sub.Quantity,
		EvidenceURL: evidence.Attachments[0].URL,
	}
	if err := s.deliveries.CreatePending(ctx, delivery); err != nil {
		s.deps.Metrics.RecordSubmission("error")
		return nil, err
	}
	log := s.logger.With(zap.Int64("delivery_id", delivery.ID), zap.String("user_id", actor.ID))
	result := &SubmitResult{Delivery: delivery}

	private, err := s.client.Post(ctx, channelID, PendingPrivateNotification(delivery.EvidenceURL))
	if err != nil {
		log.Warn("private acknowledgment failed", zap.Error(err))
		result.Warnings = append(result.Warnings, WarnPrivateNotification)
	} else if err := s.deliveries.AttachPrivateNotification(ctx, delivery.ID, private.MessageID); err != nil {
		log.Warn("attach private notification failed", zap.Error(err))
	} else {
		delivery.PrivateMessageID = &private.MessageID
	}

	if warning := s.postApprovalRequest(ctx, log, delivery, actor); warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	if err := s.client.DeleteMessage(ctx, platform.Ref{ChannelID: evidence.ChannelID, MessageID: evidence.ID}); err != nil {
		log.Debug("evidence message not deleted", zap.Error(err))
	}

	log.Info("delivery submitted", zap.String("item", delivery.Item), zap.Int64("quantity", delivery.Quantity))
	s.deps.Metrics.RecordSubmission("submitted")
	s.deps.publish(ctx, events.EventDeliverySubmitted, actor, events.DeliverySubmittedPayload{
		DeliveryID: delivery.ID,
		UserID:     actor.ID,
		Item:       delivery.Item,
		Quantity:   delivery.Quantity,
	})
	return result, nil
}

func (s *DeliveryService) postApprovalRequest(ctx context.Context, log *zap.Logger, delivery *domain.Delivery, actor domain.Actor) string {
	channelID := s.deps.Discord.ApprovalChannelID
	if channelID == "" {
		log.Warn("approval channel not configured")
		return WarnApprovalMissing
	}

	ref, err := s.client.Post(ctx, channelID, PendingPublicNotification(delivery, actor, s.deps.now()))
	if err != nil {
		log.Warn("approval request failed", zap.String("channel_id", channelID), zap.Error(err))
		switch {
		case errors.Is(err, platform.ErrNotFound):
			return WarnApprovalMissing
		case errors.Is(err, platform.ErrForbidden):
			return WarnApprovalForbidden
		default:
			return WarnApprovalFailed
		}
	}

	if err := s.deliveries.AttachPublicNotification(ctx, delivery.ID, ref.ChannelID, ref.MessageID); err != nil {
		log.Warn("attach public notification failed", zap.Error(err))
		return ""
	}
	delivery.PublicChannelID = &ref.ChannelID
	delivery.PublicMessageID = &ref.MessageID
	return ""
}

// Get returns one delivery.
func (s *DeliveryService) Get(ctx context.Context, id int64) (*domain.Delivery, error) {
	d, err := s.deliveries.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDeliveryNotFound
	}
	return d, err
}

// History returns the user's most recent deliveries, newest first.
func (s *DeliveryService) History(ctx context.Context, userID string) ([]domain.Delivery, error) {
	return s.deliveries.ListByUser(ctx, userID, s.HistorySize())
}

// HistorySize is the number of deliveries History returns.
func (s *DeliveryService) HistorySize() int {
	if s.deps.Workflow.HistorySize > 0 {
		return s.deps.Workflow.HistorySize
	}
	return 10
}
