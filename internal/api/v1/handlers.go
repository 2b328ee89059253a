package apiv1

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/shravanlabs/shravan/internal/pkg/billing"
	"github.com/shravanlabs/shravan/internal/pkg/database"
	"github.com/shravanlabs/shravan/internal/pkg/entitlements"
	"github.com/shravanlabs/shravan/internal/pkg/metrics/counter"
	"github.com/shravanlabs/shravan/internal/pkg/usercontext"
)

// APIServer implements the versioned API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ping": "pong",
	})
}

// GetUserSubscription returns the caller's current subscription state as the
// reconciliation engine last stored it, plus the derived listening tier.
// Security is enforced via API key middleware attached in the router.
func (s *APIServer) GetUserSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.GetUserSubscription(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"subscription": nil,
				"tier":         entitlements.TierFree,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_lookup_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"subscription": sub,
		"tier":         entitlements.TierForSubscription(sub),
	})
}

// GetWebhookStats reports the per-provider webhook processing counters.
// Admin-only.
func (s *APIServer) GetWebhookStats(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	counts, err := counter.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"webhooks": counts,
		"summary":  counter.FormatSnapshot(counts),
	})
}
