package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oasis-community/opsbot/internal/api/dto"
	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/service"
)

// TicketsHandler manages the caller's ticket.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// OpenTicket POST /tickets.
func (h *TicketsHandler) OpenTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Open(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetTicket GET /tickets.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Get(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CloseTicket DELETE /tickets. The channel is removed right away.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Close(c.UserContext(), actor, 0); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		UserID:    t.UserID,
		ChannelID: t.ChannelID,
		CreatedAt: t.CreatedAt,
	}
}
