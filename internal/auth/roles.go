package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/delivery-issue-service/internal/domain"
	apperrors "github.com/spec-kit/delivery-issue-service/pkg/util"
)

// RequireRole ensures the authenticated principal carries one of the allowed
// roles. An authenticated caller with the wrong role gets 403, never 401.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		switch principal.Role {
		case domain.RoleCustomer, domain.RoleSupport:
			if _, exists := allowedSet[principal.Role]; !exists {
				return apperrors.NewForbidden("insufficient role")
			}
		default:
			return apperrors.NewForbidden("unknown role")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal is attached, regardless of role.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
