// handlers/claim_routes.go
package handlers

import (
	"context"
	"log/slog"
	"time"

	"token-claim-gate/middleware"
	"token-claim-gate/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// ClaimFlow is the claim pipeline as seen by the routes.
type ClaimFlow interface {
	EvaluateEntry(ctx context.Context) services.Decision
	EvaluateCheck(ctx context.Context, identity, contentID string) services.Decision
	EvaluateClaim(ctx context.Context, identity, contentID string) services.Decision
}

// CapStats reports the cap window for operators.
type CapStats interface {
	ClaimsIssuedInCurrentWindow(ctx context.Context) (int64, error)
	CapWindow() (start, end time.Time)
}

type RouteConfig struct {
	ServiceToken   string
	MaxPerWindow   int64
	ClaimRateLimit int
}

func SetupClaimRoutes(app *fiber.App, flow ClaimFlow, cards *CardRenderer, stats CapStats, cfg RouteConfig, logger *slog.Logger) {
	api := app.Group("/api")

	entry := func(c *fiber.Ctx) error {
		d := flow.EvaluateEntry(c.UserContext())
		if d.Kind == services.AvailableToClaim {
			return c.JSON(cards.WelcomeCard())
		}
		return c.JSON(cards.Render(d))
	}
	api.Get("/", entry)
	api.Post("/", entry)

	frame := middleware.FrameContextMiddleware(logger)

	api.Post("/check", frame, func(c *fiber.Ctx) error {
		identity := c.Locals(middleware.LocalIdentity).(string)
		castHash := c.Locals(middleware.LocalCastHash).(string)
		return c.JSON(cards.Render(flow.EvaluateCheck(c.UserContext(), identity, castHash)))
	})

	claimLimiter := limiter.New(limiter.Config{
		Max:        cfg.ClaimRateLimit,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			logger.Warn("🚫 [CLAIM] rate limit reached", "event", "claim_rate_limited", "ip", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many claim attempts, try again shortly"})
		},
	})

	api.Post("/claim", claimLimiter, frame, func(c *fiber.Ctx) error {
		identity := c.Locals(middleware.LocalIdentity).(string)
		castHash := c.Locals(middleware.LocalCastHash).(string)
		return c.JSON(cards.Render(flow.EvaluateClaim(c.UserContext(), identity, castHash)))
	})

	admin := api.Group("/admin", middleware.ServiceTokenMiddleware(cfg.ServiceToken, logger))
	admin.Get("/stats", func(c *fiber.Ctx) error {
		issued, err := stats.ClaimsIssuedInCurrentWindow(c.UserContext())
		if err != nil {
			logger.Error("❌ [ADMIN] stats lookup failed", "event", "stats_failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to count claims"})
		}
		start, end := stats.CapWindow()
		resp := fiber.Map{
			"issued":       issued,
			"max":          cfg.MaxPerWindow,
			"remaining":    max(cfg.MaxPerWindow-issued, 0),
			"window_start": start,
		}
		if !end.IsZero() {
			resp["window_end"] = end
		}
		return c.JSON(resp)
	})
}
