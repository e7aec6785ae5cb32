package middleware

import (
	"errors"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/foodcourt/storefront-api/internal/repository"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired must run after RequireAuth. The role is read from the DB on
// every request so demotions take effect before the access token expires.
func AdminRequired(users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		user, err := users.FindByID(c.UserContext(), identity.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			// Handled by the app's error handler as a 500.
			return apperrors.Dependency("failed to load user role", err)
		}
		if err == nil && user.Role == models.RoleAdmin {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}
