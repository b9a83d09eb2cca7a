package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/oasis-community/opsbot/internal/api/dto"
	"github.com/oasis-community/opsbot/internal/service"
	apperrors "github.com/oasis-community/opsbot/pkg/util/errorutil"
)

// RankingHandler reads and controls the leaderboard.
type RankingHandler struct {
	ranking *service.RankingService
}

// NewRankingHandler constructs handler.
func NewRankingHandler(ranking *service.RankingService) *RankingHandler {
	return &RankingHandler{ranking: ranking}
}

// Status GET /ranking.
func (h *RankingHandler) Status(c *fiber.Ctx) error {
	status, err := h.ranking.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rankingResponse(status)})
}

// Start POST /staff/ranking/start.
func (h *RankingHandler) Start(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.StartRankingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	channelID := strings.TrimSpace(req.ChannelID)
	if channelID == "" {
		return apperrors.NewValidationError("channel_id required", nil)
	}
	ref, err := h.ranking.Start(c.UserContext(), channelID, actor)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NotificationRef{
		ChannelID: ref.ChannelID,
		MessageID: ref.MessageID,
	}})
}

// Stop POST /staff/ranking/stop.
func (h *RankingHandler) Stop(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.ranking.Stop(c.UserContext(), actor); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Refresh POST /staff/ranking/refresh.
func (h *RankingHandler) Refresh(c *fiber.Ctx) error {
	outcome, err := h.ranking.Refresh(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RefreshResponse{Outcome: string(outcome)}})
}

func rankingResponse(status *service.RankingStatus) dto.RankingResponse {
	resp := dto.RankingResponse{
		Active:    status.Pointer.Active(),
		ChannelID: status.Pointer.ChannelID,
		MessageID: status.Pointer.MessageID,
		UpdatedAt: status.Pointer.UpdatedAt,
		Standings: make([]dto.StandingResponse, 0, len(status.Standings)),
	}
	for i, s := range status.Standings {
		resp.Standings = append(resp.Standings, dto.StandingResponse{
			Rank:   i + 1,
			UserID: s.UserID,
			Total:  s.Total,
		})
	}
	return resp
}
