package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpipe/postpipe/configs"
	"github.com/postpipe/postpipe/internal/transfer"
	"github.com/postpipe/postpipe/pkg/utils"
)

// InstagramWebhookHandler answers the Graph API webhook handshake and logs
// incoming change notifications.
type InstagramWebhookHandler struct {
	cfg *config.Config
}

func NewInstagramWebhookHandler(cfg *config.Config) *InstagramWebhookHandler {
	return &InstagramWebhookHandler{cfg: cfg}
}

func (h *InstagramWebhookHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.cfg.Graph.WebhookVerifyToken {
		slog.Info("webhook verification succeeded")
		return c.Status(fiber.StatusOK).SendString(challenge)
	}

	slog.Info("webhook verification rejected", "mode", mode)
	return c.SendStatus(fiber.StatusForbidden)
}

func (h *InstagramWebhookHandler) Receive(c *fiber.Ctx) error {
	body := c.Body()

	if h.cfg.Graph.AppSecret == "" {
		slog.Warn("app secret not configured, skipping signature verification")
	} else if !utils.VerifySignature(h.cfg.Graph.AppSecret, body, c.Get("X-Hub-Signature-256")) {
		slog.Info("webhook signature mismatch")
		return c.SendStatus(fiber.StatusForbidden)
	}

	req := new(transfer.InstagramWebhookRequest)
	if err := c.BodyParser(req); err != nil {
		slog.Info(err.Error())
		return c.SendStatus(fiber.StatusOK)
	}

	for _, entry := range req.Entry {
		for _, change := range entry.Changes {
			slog.Info("instagram change received",
				"entry", entry.ID,
				"field", change.Field,
				"media", change.Value.MediaID)
		}
	}

	return c.Status(fiber.StatusOK).SendString("EVENT_RECEIVED")
}
