package handlers

import (
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/middleware"
	"github.com/foodcourt/storefront-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	resp, err := h.orders.Create(c.UserContext(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Verify settles a payment with the signature the gateway handed the client.
func (h *OrderHandler) Verify(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	var req dto.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	order, err := h.orders.Verify(c.UserContext(), identity.UserID, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"order": order})
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	orders, err := h.orders.List(c.UserContext(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return writeError(c, services.ErrInvalidAccessToken)
	}
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, services.ErrOrderNotFound)
	}
	order, err := h.orders.Get(c.UserContext(), identity.UserID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"order": order})
}
