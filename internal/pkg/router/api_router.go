package router

import (
	"net"
	"strconv"

	apiv1 "github.com/shravanlabs/shravan/internal/api/v1"
	"github.com/shravanlabs/shravan/app/controllers"
	"github.com/shravanlabs/shravan/internal/pkg/cache"
	"github.com/shravanlabs/shravan/internal/pkg/constants"
	"github.com/shravanlabs/shravan/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Storage: newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer()
	v1.Get("/ping", apiServer.GetPing)

	authenticated := v1.Group("", middleware.APIKeyAuthMiddleware())
	authenticated.Get(constants.UserSubscriptionRoute, apiServer.GetUserSubscription)
	authenticated.Get(constants.EventsRoute, controllers.HandleEvents)
	authenticated.Get(constants.WebhookStatsRoute, apiServer.GetWebhookStats)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances, reusing the cache client's connection settings on database 2.
func newLimiterStorage() *redisstorage.Storage {
	opts := cache.GetClient().Options()

	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: 2,
		Reset:    false,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
