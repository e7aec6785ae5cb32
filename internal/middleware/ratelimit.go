package middleware

import (
	"strings"
	"time"

	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/tokens"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// AccessVerifier resolves a bearer token to the user it was issued to.
type AccessVerifier interface {
	VerifyAccess(token string) (tokens.Identity, error)
}

// RateLimit is a sliding-window request gate. Counters live in storage, which
// defaults to fiber's in-memory store when nil; scope namespaces the keys so
// several gates can share one storage. With a verifier, requests carrying a
// valid access token are counted per user, others per IP.
func RateLimit(scope string, limit int, window time.Duration, storage fiber.Storage, verifier AccessVerifier) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if verifier != nil {
				if token, ok := bearerToken(c); ok {
					if identity, err := verifier.VerifyAccess(token); err == nil {
						return scope + ":user:" + identity.UserID.String()
					}
				}
			}
			return scope + ":ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error: true, Message: "Too many requests, please try again later",
			})
		},
	})
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:]), true
	}
	return "", false
}
