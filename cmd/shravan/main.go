package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/shravanlabs/shravan/app/repository"
	"github.com/shravanlabs/shravan/internal/pkg/cache"
	"github.com/shravanlabs/shravan/internal/pkg/database"
	"github.com/shravanlabs/shravan/internal/pkg/env"
	"github.com/shravanlabs/shravan/internal/pkg/realtime"
	"github.com/shravanlabs/shravan/internal/pkg/router"
)

const heartbeatInterval = 25 * time.Second

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	cache.SetupCache()

	setupRealtime()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "shravan",
		// Provider webhook bodies are small; anything bigger is garbage.
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}

// setupRealtime starts the heartbeat worker and, when Redis is available,
// bridges event fan-out through pub/sub so every instance delivers to its
// own connected clients.
func setupRealtime() {
	hub := realtime.GetHub()
	hub.StartHeartbeat(heartbeatInterval)

	bridge := realtime.NewBridge(cache.GetClient(), hub, realtime.DefaultChannel)
	bridge.Start()
	realtime.GetEmitter().AttachBridge(bridge)
}
