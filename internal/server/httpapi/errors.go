package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/server/services"
)

// errorHandler maps service errors onto HTTP statuses. Not-found and
// authorization denials share one generic body so responses never reveal
// whether a file exists. Internal details are logged, never returned.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})

	case errors.Is(err, common.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})

	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid token"})

	case errors.Is(err, common.ErrAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, common.ErrDecryptFailed),
		errors.Is(err, services.ErrEncryptedMode),
		errors.Is(err, services.ErrPassphraseRequired),
		errors.Is(err, services.ErrNotEncrypted),
		errors.Is(err, services.ErrAlreadyEncrypted),
		errors.Is(err, services.ErrNothingToBundle),
		errors.Is(err, services.ErrEmptyBundleRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, services.ErrBundleQueueFull):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})

	default:
		s.logger.Error(c.UserContext(), "request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
