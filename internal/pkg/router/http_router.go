package router

import (
	"github.com/shravanlabs/shravan/app/controllers"
	"github.com/shravanlabs/shravan/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	h.registerWebhookRoutes(app)
}

// registerWebhookRoutes attaches the provider callback endpoints. They carry
// their own authentication (HMAC / shared-secret bearer) and are deliberately
// excluded from the rate limiter: providers burst on retry storms and a 429
// only prolongs the storm.
func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	app.Post(constants.RazorpayWebhookRoute, controllers.HandleRazorpayWebhook)
	app.Post(constants.RevenueCatWebhookRoute, controllers.HandleRevenueCatWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
