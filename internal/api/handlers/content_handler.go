package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postpipe/postpipe/internal/service"
	"github.com/postpipe/postpipe/internal/transfer"
)

type ContentHandler struct {
	g service.GeneratorService
}

func NewContentHandler(generator service.GeneratorService) *ContentHandler {
	return &ContentHandler{g: generator}
}

func (h *ContentHandler) GenerateContent(c *fiber.Ctx) error {
	req := new(transfer.GenerateRequest)
	if err := c.BodyParser(req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	resp, err := h.g.GenerateCaptions(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
