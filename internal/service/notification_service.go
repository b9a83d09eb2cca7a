package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/platform"
)

// NotificationService reacts to domain events with direct messages and logs.
type NotificationService struct {
	dispatcher events.Dispatcher
	client     platform.Client
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps Dependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		client:     deps.Platform,
		logger:     deps.Logger.Named("notifications"),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventDeliveryDecided, n.handleDeliveryDecided)
	n.dispatcher.Subscribe(events.EventDeliverySubmitted, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketOpened, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.logEvent)
}

func (n *NotificationService) handleDeliveryDecided(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DeliveryDecidedPayload)
	if !ok {
		return nil
	}
	d := &domain.Delivery{
		ID:       payload.DeliveryID,
		UserID:   payload.UserID,
		Item:     payload.Item,
		Quantity: payload.Quantity,
		Status:   payload.Status,
	}
	// Members may have direct messages disabled.
	if err := n.client.SendDirect(ctx, payload.UserID, DecisionDirectNotification(d)); err != nil {
		n.logger.Debug("decision direct message not delivered",
			zap.String("user_id", payload.UserID),
			zap.Int64("delivery_id", payload.DeliveryID),
			zap.Error(err))
	}
	return nil
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return nil
}
