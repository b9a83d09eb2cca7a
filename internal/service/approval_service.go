package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/repository"
	"github.com/oasis-community/opsbot/pkg/util/errorutil"
)

// Warnings surfaced to the deciding actor.
const (
	WarnPublicUnavailable = "The decision was saved but the approval record could not be updated."
	WarnPublicMissing     = "The decision was saved; this delivery has no approval record to update."
)

// DecisionResult reports the decided record and any notification problems.
type DecisionResult struct {
	Delivery *domain.Delivery
	Warnings []string
}

// ApprovalService moves deliveries from pending to a terminal status and
// keeps both notification records in step.
type ApprovalService struct {
	deps       Dependencies
	deliveries repository.DeliveryRepository
	tickets    repository.TicketRepository
	client     platform.Client
	logger     *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(deps Dependencies) *ApprovalService {
	return &ApprovalService{
		deps:       deps,
		deliveries: deps.Repos.Deliveries,
		tickets:    deps.Repos.Tickets,
		client:     deps.Platform,
		logger:     deps.Logger.Named("approvals"),
	}
}

// IsStaff reports whether member holds the staff role or is an administrator.
func IsStaff(member platform.Member, staffRoleID string) bool {
	return member.Administrator || member.HasRole(staffRoleID)
}

// DecideFromNotification decides the delivery whose ID is stamped in the
// footer of the public record at ref.
func (s *ApprovalService) DecideFromNotification(ctx context.Context, ref platform.Ref, decision domain.DeliveryStatus, actor domain.Actor) (*DecisionResult, error) {
	if err := checkDecision(decision, actor); err != nil {
		return nil, err
	}
	record, err := s.client.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch approval record: %w", err)
	}
	id, ok := ParseDeliveryID(record.Notification.Footer)
	if !ok {
		return nil, ErrMissingDeliveryID
	}
	return s.decide(ctx, id, decision, actor, record)
}

// Decide decides a delivery by ID. The public record is located through the
// reference stored on the delivery.
func (s *ApprovalService) Decide(ctx context.Context, id int64, decision domain.DeliveryStatus, actor domain.Actor) (*DecisionResult, error) {
	if err := checkDecision(decision, actor); err != nil {
		return nil, err
	}
	return s.decide(ctx, id, decision, actor, nil)
}

func checkDecision(decision domain.DeliveryStatus, actor domain.Actor) error {
	if !actor.Staff {
		return ErrNotStaff
	}
	if !decision.Terminal() {
		return errorutil.NewValidationError("decision must be approved or denied", map[string]any{"decision": string(decision)})
	}
	return nil
}

func (s *ApprovalService) decide(ctx context.Context, id int64, decision domain.DeliveryStatus, actor domain.Actor, public *platform.Message) (*DecisionResult, error) {
	if _, err := s.deliveries.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, err
	}

	delivery, err := s.deliveries.SetStatus(ctx, id, decision, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, err
	}
	log := s.logger.With(zap.Int64("delivery_id", id), zap.String("actor_id", actor.ID))
	log.Info("delivery decided", zap.String("status", string(delivery.Status)))
	s.deps.Metrics.RecordDecision(string(delivery.Status))

	result := &DecisionResult{Delivery: delivery}
	s.rewritePrivate(ctx, log, delivery)
	if warning := s.rewritePublic(ctx, log, delivery, actor, public); warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	s.deps.publish(ctx, events.EventDeliveryDecided, actor, events.DeliveryDecidedPayload{
		DeliveryID: delivery.ID,
		UserID:     delivery.UserID,
		Item:       delivery.Item,
		Quantity:   delivery.Quantity,
		Status:     delivery.Status,
		DecidedBy:  actor.ID,
	})
	return result, nil
}

// rewritePrivate updates the acknowledgment in the submitter's ticket. It
// needs the ticket, its channel and the private record to all resolve.
func (s *ApprovalService) rewritePrivate(ctx context.Context, log *zap.Logger, d *domain.Delivery) {
	if d.PrivateMessageID == nil {
		return
	}
	ticket, err := s.tickets.Get(ctx, d.UserID)
	if err != nil {
		log.Debug("private record skipped: no ticket", zap.Error(err))
		return
	}
	ref := platform.Ref{ChannelID: ticket.ChannelID, MessageID: *d.PrivateMessageID}
	if err := s.client.Edit(ctx, ref, DecidedPrivateNotification(d.Status, d.EvidenceURL)); err != nil {
		log.Warn("private record not updated", zap.Error(err))
	}
}

func (s *ApprovalService) rewritePublic(ctx context.Context, log *zap.Logger, d *domain.Delivery, actor domain.Actor, public *platform.Message) string {
	if public == nil {
		if d.PublicChannelID == nil || d.PublicMessageID == nil {
			return WarnPublicMissing
		}
		fetched, err := s.client.Fetch(ctx, platform.Ref{ChannelID: *d.PublicChannelID, MessageID: *d.PublicMessageID})
		if err != nil {
			log.Warn("public record not found", zap.Error(err))
			return WarnPublicUnavailable
		}
		public = fetched
	}
	if err := s.client.Edit(ctx, public.Ref, DecidedPublicNotification(public.Notification, d.Status, actor)); err != nil {
		log.Warn("public record not updated", zap.Error(err))
		return WarnPublicUnavailable
	}
	return ""
}
