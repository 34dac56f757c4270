package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postpipe/postpipe/internal/service"
	"github.com/postpipe/postpipe/internal/transfer"
)

// WebhookHandler serves the publish-now path: the whole pipeline runs
// synchronously inside the request, ending in an inline publish.
type WebhookHandler struct {
	s service.SchedulerService
}

func NewWebhookHandler(service service.SchedulerService) *WebhookHandler {
	return &WebhookHandler{s: service}
}

func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	return h.handle(c, "")
}

// Typed returns a handler bound to one post type, for the per-type routes.
// The route's type wins over whatever the body claims.
func (h *WebhookHandler) Typed(postType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return h.handle(c, postType)
	}
}

func (h *WebhookHandler) handle(c *fiber.Ctx, forcedType string) error {
	req := new(transfer.WebhookRequest)
	if err := c.BodyParser(req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}
	if forcedType != "" {
		req.PostType = forcedType
	}

	if err := validatePostType(req.PostType, len(req.Media)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.s.PublishNow(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
