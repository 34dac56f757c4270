package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postpipe/postpipe/internal/service"
	"github.com/postpipe/postpipe/internal/transfer"
)

// CalendarWebhookHandler receives Google Calendar push notifications. The
// channel must always get a 200 back or Google retries and eventually stops
// delivering.
type CalendarWebhookHandler struct {
	s service.SchedulerService
}

func NewCalendarWebhookHandler(service service.SchedulerService) *CalendarWebhookHandler {
	return &CalendarWebhookHandler{s: service}
}

func (h *CalendarWebhookHandler) HandleNotification(c *fiber.Ctx) error {
	n := &transfer.CalendarNotification{
		ResourceID:    c.Get("X-Goog-Resource-ID"),
		ResourceURI:   c.Get("X-Goog-Resource-URI"),
		ResourceState: c.Get("X-Goog-Resource-State"),
		ChannelID:     c.Get("X-Goog-Channel-ID"),
		MessageNumber: c.Get("X-Goog-Message-Number"),
	}

	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &n.Body); err != nil {
			slog.Info(err.Error())
		}
	}

	slog.Info("calendar notification received",
		"state", n.ResourceState,
		"resource", n.ResourceID,
		"channel", n.ChannelID)

	// "sync" is the channel-creation handshake, nothing to reconcile
	if n.ResourceState != "sync" {
		if err := h.s.HandleCalendarNotification(c.Context(), n); err != nil {
			slog.Error(err.Error())
		}
	}

	return c.SendStatus(fiber.StatusOK)
}
