package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type PlatformHandler struct {
	ps service.PlatformService
}

func NewPlatformHandler(ps service.PlatformService) *PlatformHandler {
	return &PlatformHandler{ps: ps}
}

func (h *PlatformHandler) CreatePlatform(c *fiber.Ctx) error {
	var in transfer.PlatformInput
	if err := bindJSON(c, &in); err != nil {
		return badRequest(c, err)
	}

	platform, err := h.ps.Create(c.Context(), &in)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(platform)
}

func (h *PlatformHandler) ListPlatforms(c *fiber.Ctx) error {
	platforms, err := h.ps.List(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(platforms)
}

func (h *PlatformHandler) GetPlatform(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err)
	}

	platform, err := h.ps.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(platform)
}

func (h *PlatformHandler) UpdatePlatform(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err)
	}

	var in transfer.PlatformInput
	if err := bindJSON(c, &in); err != nil {
		return badRequest(c, err)
	}

	platform, err := h.ps.Update(c.Context(), id, &in)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(platform)
}

func (h *PlatformHandler) DeletePlatform(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.ps.Delete(c.Context(), id); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
