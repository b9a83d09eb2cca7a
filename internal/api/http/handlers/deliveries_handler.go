package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/oasis-community/opsbot/internal/api/dto"
	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/service"
	apperrors "github.com/oasis-community/opsbot/pkg/util/errorutil"
)

// DeliveriesHandler exposes delivery history and staff decisions.
type DeliveriesHandler struct {
	deliveries *service.DeliveryService
	approvals  *service.ApprovalService
}

// NewDeliveriesHandler constructs handler.
func NewDeliveriesHandler(deliveries *service.DeliveryService, approvals *service.ApprovalService) *DeliveriesHandler {
	return &DeliveriesHandler{deliveries: deliveries, approvals: approvals}
}

// ListMine GET /deliveries.
func (h *DeliveriesHandler) ListMine(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	records, err := h.deliveries.History(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}
	items := make([]dto.DeliveryResponse, 0, len(records))
	for i := range records {
		items = append(items, deliveryResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDelivery GET /staff/deliveries/:id.
func (h *DeliveriesHandler) GetDelivery(c *fiber.Ctx) error {
	id, err := deliveryID(c)
	if err != nil {
		return err
	}
	d, err := h.deliveries.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": deliveryResponse(d)})
}

// Decide POST /staff/deliveries/:id/decision.
func (h *DeliveriesHandler) Decide(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := deliveryID(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.approvals.Decide(c.UserContext(), id, req.Decision, actor)
	if err != nil {
		return err
	}
	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return c.JSON(fiber.Map{"data": dto.DecisionResponse{
		Delivery: deliveryResponse(result.Delivery),
		Warnings: warnings,
	}})
}

func deliveryID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid delivery id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func deliveryResponse(d *domain.Delivery) dto.DeliveryResponse {
	resp := dto.DeliveryResponse{
		ID:               d.ID,
		UserID:           d.UserID,
		Item:             d.Item,
		Quantity:         d.Quantity,
		EvidenceURL:      d.EvidenceURL,
		Status:           d.Status,
		PrivateMessageID: d.PrivateMessageID,
		DecidedBy:        d.DecidedBy,
		DecidedAt:        d.DecidedAt,
		SubmittedAt:      d.SubmittedAt,
	}
	if d.PublicChannelID != nil && d.PublicMessageID != nil {
		resp.PublicNotification = &dto.NotificationRef{
			ChannelID: *d.PublicChannelID,
			MessageID: *d.PublicMessageID,
		}
	}
	return resp
}
