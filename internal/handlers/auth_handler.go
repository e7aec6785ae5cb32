package handlers

import (
	"log/slog"
	"time"

	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/middleware"
	"github.com/foodcourt/storefront-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

const RefreshCookieName = "refresh_token"

// CookieSettings controls how the refresh token cookie is written. The
// storefront frontend lives on another site, hence SameSite=None by default.
type CookieSettings struct {
	Domain   string
	Secure   bool
	SameSite string
}

func (s CookieSettings) sameSite() string {
	switch s.SameSite {
	case "lax":
		return fiber.CookieSameSiteLaxMode
	case "strict":
		return fiber.CookieSameSiteStrictMode
	default:
		return fiber.CookieSameSiteNoneMode
	}
}

type AuthHandler struct {
	sessions *services.SessionService
	cookies  CookieSettings
}

func NewAuthHandler(sessions *services.SessionService, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookies: cookies}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.sessions.Register(c.UserContext(), &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.RegisterResponse{
		Message: "Registration successful",
		User:    dto.NewUserResponse(user),
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	session, err := h.sessions.Login(c.UserContext(), &req)
	if err != nil {
		return writeError(c, err)
	}

	h.setRefreshCookie(c, session.RefreshToken.Token)
	return c.JSON(dto.LoginResponse{
		AccessToken: session.AccessToken.Token,
		ExpiresAt:   session.AccessToken.ExpiresAt.Unix(),
		User:        dto.NewUserResponse(session.User),
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	session, err := h.sessions.Refresh(c.UserContext(), c.Cookies(RefreshCookieName))
	if err != nil {
		return writeError(c, err)
	}

	h.setRefreshCookie(c, session.RefreshToken.Token)
	return c.JSON(dto.RefreshResponse{
		AccessToken: session.AccessToken.Token,
		ExpiresAt:   session.AccessToken.ExpiresAt.Unix(),
	})
}

// Logout always succeeds for the client; a ledger failure is only logged.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.Logout(c.UserContext(), c.Cookies(RefreshCookieName)); err != nil {
		slog.Error("logout failed to revoke refresh token", "error", err, "request_id", requestID(c))
	}
	h.clearRefreshCookie(c)
	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}

	user, err := h.sessions.CurrentUser(c.UserContext(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"user": dto.NewUserResponse(user)})
}

func (h *AuthHandler) UpdateAddress(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}

	var req dto.UpdateAddressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.sessions.UpdateAddress(c.UserContext(), identity.UserID, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"user": dto.NewUserResponse(user)})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	ttl := h.sessions.RefreshTTL()
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		Secure:   h.cookies.Secure,
		HTTPOnly: true,
		SameSite: h.cookies.sameSite(),
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.cookies.Secure,
		HTTPOnly: true,
		SameSite: h.cookies.sameSite(),
	})
}
