package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/harborview-properties/messaging-service/internal/auth"
	"github.com/harborview-properties/messaging-service/internal/metrics"
	"github.com/harborview-properties/messaging-service/internal/middleware"
)

func NewServer(h *Handlers, jv *auth.JWTValidator, rl *middleware.RateLimiter) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/v1")
	api.Use(bearerAuth(jv))
	if rl != nil {
		api.Use(rl.MiddlewareByKey(func(c *fiber.Ctx) string {
			return c.Locals("user_id").(string)
		}))
	}

	api.Get("/unread", h.totalUnread)
	api.Post("/read", h.markRead)
	api.Post("/conversations", h.createConversation)
	api.Get("/conversations/:conversation_id", h.getConversation)
	api.Delete("/conversations/:conversation_id", h.deleteConversation)
	api.Get("/conversations/:conversation_id/messages", h.listMessages)
	api.Post("/conversations/:conversation_id/messages", h.createMessage)
	api.Post("/messages/:msg_id/attachments", h.attachFiles)
	api.Post("/attachments", h.uploadAttachment)

	return app
}

func bearerAuth(jv *auth.JWTValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hdr := c.Get("Authorization")
		if hdr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth"})
		}
		const pref = "Bearer "
		if len(hdr) <= len(pref) || hdr[:len(pref)] != pref {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid auth"})
		}
		sub, err := jv.Validate(hdr[len(pref):])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		c.Locals("user_id", sub)
		return c.Next()
	}
}
