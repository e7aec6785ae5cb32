package middleware

import (
	"errors"

	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/tokens"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// RequireAuth admits requests carrying a valid access token in the
// Authorization header. A missing header is 401; a bad or expired token is 403.
func RequireAuth(issuer *tokens.Issuer) fiber.Handler {
	return jwtware.New(jwtware.Config{
		KeyFunc: issuer.AccessKeyfunc(),
		Claims:  &tokens.Claims{},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok {
				return forbidden(c)
			}
			claims, ok := token.Claims.(*tokens.Claims)
			if !ok {
				return forbidden(c)
			}
			identity, err := claims.Identity(tokens.Access)
			if err != nil {
				return forbidden(c)
			}
			c.Locals(identityKey, identity)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
					Error: true, Message: "Unauthorized: access token required",
				})
			}
			return forbidden(c)
		},
	})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
		Error: true, Message: "Forbidden: invalid or expired token",
	})
}

// CurrentIdentity returns what RequireAuth verified for this request.
func CurrentIdentity(c *fiber.Ctx) (tokens.Identity, bool) {
	identity, ok := c.Locals(identityKey).(tokens.Identity)
	return identity, ok
}
