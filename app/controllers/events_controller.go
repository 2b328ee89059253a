package controllers

import (
	"bufio"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/shravanlabs/shravan/internal/pkg/realtime"
	"github.com/shravanlabs/shravan/internal/pkg/usercontext"
)

// HandleEvents establishes the long-lived event stream for the authenticated
// caller: registers the connection in the fan-out hub, acknowledges it with a
// connected event, then relays heartbeats and any subscription/payment events
// for that user until the client goes away.
func HandleEvents(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	hub := realtime.GetHub()
	client := hub.AddClient(userCtx.UserID)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	// Tell nginx-style proxies not to buffer the stream.
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer hub.RemoveClient(client)

		connected := realtime.NewEvent(realtime.EventConnected, client.UserID)
		connected.Data = fiber.Map{"connectionId": client.ID}
		if err := realtime.WriteSSE(w, connected); err != nil {
			return
		}

		for {
			select {
			case <-client.Done():
				return
			case event, ok := <-client.Ch:
				if !ok {
					return
				}
				// A write error means the client disconnected; the deferred
				// removal prunes the registration.
				if err := realtime.WriteSSE(w, event); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
