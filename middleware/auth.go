// middleware/auth.go
package middleware

import (
	"log/slog"
	"regexp"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalIdentity = "identity"
	LocalCastHash = "cast_hash"
)

var castHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type frameAction struct {
	FID      uint64 `json:"fid"`
	CastHash string `json:"cast_hash"`
}

// FrameContextMiddleware reads the acting identity and the cast being recast from the request body
// and attaches them to ctx locals. Requests without a valid identity and cast are rejected.
func FrameContextMiddleware(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var action frameAction
		if err := c.BodyParser(&action); err != nil {
			logger.Debug("👤 [FRAME_CTX] unreadable body", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid frame action body"})
		}
		if action.FID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fid is required"})
		}
		if action.CastHash == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cast_hash is required"})
		}
		if !castHashPattern.MatchString(action.CastHash) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cast_hash must be a 20-byte 0x hex string"})
		}

		c.Locals(LocalIdentity, strconv.FormatUint(action.FID, 10))
		c.Locals(LocalCastHash, action.CastHash)

		logger.Debug("👤 [FRAME_CTX] frame action", "fid", action.FID, "cast_hash", action.CastHash, "path", c.Path())
		return c.Next()
	}
}
