package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
)

var validate = validator.New()

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// bindJSON parses the request body into dst and runs its validate tags.
func bindJSON(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		slog.Info(err.Error())
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// respondError maps service errors onto HTTP status codes. Anything
// unrecognised is logged and reported as a 500 without internals.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidUser):
		status = fiber.StatusUnauthorized
	case errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrPlatformNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrDuplicatePlatform),
		errors.Is(err, service.ErrPublishedImmutable),
		errors.Is(err, service.ErrFailedTerminal),
		errors.Is(err, service.ErrPostConflict):
		status = fiber.StatusConflict
	case errors.Is(err, service.ErrFileTooLarge):
		status = fiber.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrUnsupportedMedia):
		status = fiber.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrNoPlatforms):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
