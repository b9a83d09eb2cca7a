package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oasis-community/opsbot/internal/auth"
	"github.com/oasis-community/opsbot/internal/domain"
	apperrors "github.com/oasis-community/opsbot/pkg/util/errorutil"
)

func actorFromContext(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}
