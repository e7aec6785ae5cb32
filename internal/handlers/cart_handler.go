package handlers

import (
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/middleware"
	"github.com/foodcourt/storefront-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CartHandler struct {
	carts *services.CartService
}

func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

func (h *CartHandler) Get(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	cart, err := h.carts.Get(c.UserContext(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	var req dto.AddCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	cart, err := h.carts.AddItem(c.UserContext(), identity.UserID, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	menuItemID, err := uuid.Parse(c.Params("menuItemId"))
	if err != nil {
		return badRequest(c, "Invalid menu item ID")
	}
	var req dto.UpdateCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	cart, err := h.carts.SetQuantity(c.UserContext(), identity.UserID, menuItemID, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	menuItemID, err := uuid.Parse(c.Params("menuItemId"))
	if err != nil {
		return badRequest(c, "Invalid menu item ID")
	}
	cart, err := h.carts.RemoveItem(c.UserContext(), identity.UserID, menuItemID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	if err := h.carts.Clear(c.UserContext(), identity.UserID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Cart cleared"})
}
