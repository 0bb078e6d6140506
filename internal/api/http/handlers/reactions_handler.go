package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/api/dto"
	"github.com/spec-kit/staffchat/internal/service"
)

// ReactionsHandler toggles and summarises emoji reactions.
type ReactionsHandler struct {
	reactions *service.ReactionService
}

// NewReactionsHandler constructs handler.
func NewReactionsHandler(reactions *service.ReactionService) *ReactionsHandler {
	return &ReactionsHandler{reactions: reactions}
}

// Toggle POST /chat/messages/:id/reactions.
func (h *ReactionsHandler) Toggle(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ReactionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	action, summary, err := h.reactions.Toggle(c.UserContext(), user, id, req.Emoji)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"action": action, "reactions": summary}})
}

// Summary GET /chat/messages/:id/reactions.
func (h *ReactionsHandler) Summary(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	summary, err := h.reactions.Summary(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	if summary == nil {
		summary = []service.ReactionGroup{}
	}
	return c.JSON(fiber.Map{"data": summary})
}
