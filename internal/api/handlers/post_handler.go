package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := bindJSON(c, &pc); err != nil {
		return badRequest(c, err)
	}

	post, err := h.s.Create(c.Context(), GetUserID(c), &pc)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	postID, err := paramID(c)
	if err != nil {
		return badRequest(c, err)
	}

	var pu transfer.PostUpdate
	if err := bindJSON(c, &pu); err != nil {
		return badRequest(c, err)
	}

	post, err := h.s.Update(c.Context(), GetUserID(c), postID, &pu)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	postID, err := paramID(c)
	if err != nil {
		return badRequest(c, err)
	}

	post, err := h.s.PostInfo(c.Context(), postID, GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) ListByStatus(c *fiber.Ctx) error {
	posts, err := h.s.ListByStatus(c.Context(), GetUserID(c), c.Params("status"))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) ListByDate(c *fiber.Ctx) error {
	posts, err := h.s.ListByDate(c.Context(), GetUserID(c), c.Params("date"))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) ListAttempts(c *fiber.Ctx) error {
	postID, err := paramID(c)
	if err != nil {
		return badRequest(c, err)
	}

	attempts, err := h.s.Attempts(c.Context(), GetUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(attempts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	postID, err := paramID(c)
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.s.Remove(c.Context(), GetUserID(c), postID); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
