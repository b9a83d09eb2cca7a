package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/observability"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/repository"
)

// Dependencies bundles collaborators shared by the workflow services.
type Dependencies struct {
	Repos      repository.Repositories
	Platform   platform.Client
	Hub        *capture.Hub
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Discord    config.DiscordConfig
	Workflow   config.WorkflowConfig
	// Now is overridable in tests.
	Now func() time.Time
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Dependencies) publish(ctx context.Context, eventType events.EventType, actor domain.Actor, payload interface{}) {
	if d.Dispatcher == nil {
		return
	}
	_ = d.Dispatcher.Publish(ctx, events.New(eventType, actor, payload))
}

// Services groups the workflow services built from one Dependencies value.
type Services struct {
	Tickets       *TicketService
	Deliveries    *DeliveryService
	Approvals     *ApprovalService
	Ranking       *RankingService
	Rescue        *RescueService
	Notifications *NotificationService
}

// New builds every service and registers event subscribers.
func New(deps Dependencies) *Services {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Services{
		Tickets:       NewTicketService(deps),
		Deliveries:    NewDeliveryService(deps),
		Approvals:     NewApprovalService(deps),
		Ranking:       NewRankingService(deps),
		Rescue:        NewRescueService(deps),
		Notifications: NewNotificationService(deps),
	}
	s.Notifications.RegisterHandlers()
	return s
}
