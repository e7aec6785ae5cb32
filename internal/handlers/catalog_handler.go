package handlers

import (
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) List(c *fiber.Ctx) error {
	var q dto.MenuQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query parameters")
	}
	page, err := h.catalog.ListMenu(c.UserContext(), &q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(page)
}

func (h *CatalogHandler) Search(c *fiber.Ctx) error {
	var q dto.SearchQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query parameters")
	}
	items, err := h.catalog.Search(c.UserContext(), &q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.catalog.Categories(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (h *CatalogHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, services.ErrMenuItemNotFound)
	}
	item, err := h.catalog.GetItem(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(item)
}

func (h *CatalogHandler) Create(c *fiber.Ctx) error {
	var req dto.MenuItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	item, err := h.catalog.CreateItem(c.UserContext(), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *CatalogHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid menu item ID")
	}
	var req dto.MenuItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	item, err := h.catalog.UpdateItem(c.UserContext(), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(item)
}

func (h *CatalogHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid menu item ID")
	}
	if err := h.catalog.DeleteItem(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Menu item deleted"})
}
