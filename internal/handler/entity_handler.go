package handler

import (
	"go-ledger-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type EntityHandler struct {
	entities service.EntityService
}

func NewEntityHandler(entities service.EntityService) *EntityHandler {
	return &EntityHandler{entities: entities}
}

// GET /api/v1/entities
func (h *EntityHandler) ListEntities(c *fiber.Ctx) error {
	entities, err := h.entities.ListEntities(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entities)
}

// GET /api/v1/entities/:id
func (h *EntityHandler) GetEntity(c *fiber.Ctx) error {
	entity, err := h.entities.GetEntity(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entity)
}

// POST /api/v1/entities
func (h *EntityHandler) CreateEntity(c *fiber.Ctx) error {
	var req service.ExternalEntityRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	entity, err := h.entities.AddExternalEntity(c.UserContext(), &req, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Entity created", "data": entity})
}

// PUT /api/v1/entities/:id
func (h *EntityHandler) UpdateEntity(c *fiber.Ctx) error {
	var req service.ExternalEntityRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	entity, err := h.entities.UpdateExternalEntity(c.UserContext(), c.Params("id"), &req, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Entity updated", "data": entity})
}

// DELETE /api/v1/entities/:id
func (h *EntityHandler) DeleteEntity(c *fiber.Ctx) error {
	if err := h.entities.DeleteExternalEntity(c.UserContext(), c.Params("id"), getUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Entity deleted"})
}
