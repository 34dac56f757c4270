package handlers

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/postpipe/postpipe/internal/service"
	"github.com/postpipe/postpipe/internal/transfer"
)

type ScheduleHandler struct {
	s service.SchedulerService
}

func NewScheduleHandler(service service.SchedulerService) *ScheduleHandler {
	return &ScheduleHandler{s: service}
}

func (h *ScheduleHandler) SchedulePost(c *fiber.Ctx) error {
	req := new(transfer.ScheduleRequest)
	if err := c.BodyParser(req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := validatePostType(req.PostType, len(req.SelectedMedia)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.s.Schedule(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// validatePostType checks that the post type is known and that carousel_N
// selections carry exactly N media items.
func validatePostType(postType string, mediaCount int) error {
	pt := strings.ToLower(postType)

	switch {
	case pt == "static", pt == "video":
		if mediaCount != 1 {
			return fmt.Errorf("%s posts require exactly 1 media item, got %d", pt, mediaCount)
		}
		return nil
	case strings.HasPrefix(pt, "carousel_"):
		n, err := strconv.Atoi(strings.TrimPrefix(pt, "carousel_"))
		if err != nil || n < 2 || n > 10 {
			return fmt.Errorf("invalid post type: %s", postType)
		}
		if mediaCount != n {
			return fmt.Errorf("%s posts require exactly %d media items, got %d", pt, n, mediaCount)
		}
		return nil
	}
	return fmt.Errorf("invalid post type: %s", postType)
}
