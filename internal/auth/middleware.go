package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/oasis-community/opsbot/internal/domain"
	apperrors "github.com/oasis-community/opsbot/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	UserID      string
	DisplayName string
}

// Actor converts the principal into a workflow actor.
func (p *Principal) Actor() domain.Actor {
	return domain.Actor{
		ID:          p.UserID,
		DisplayName: p.DisplayName,
		Staff:       p.SubjectType == domain.SubjectTypeStaff,
	}
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	switch claims.Subject {
	case domain.SubjectTypeUser, domain.SubjectTypeStaff:
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}
	if claims.SubjectID == "" {
		return apperrors.NewUnauthorized("missing subject")
	}

	c.Locals(principalKey, &Principal{
		SubjectType: claims.Subject,
		UserID:      claims.SubjectID,
		DisplayName: claims.Name,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
