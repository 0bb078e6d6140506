package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/service"
)

// PresenceHandler exposes typing indicators and the online list.
type PresenceHandler struct {
	presence *service.PresenceService
}

// NewPresenceHandler constructs handler.
func NewPresenceHandler(presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// StartTyping POST /chat/rooms/:name/typing.
func (h *PresenceHandler) StartTyping(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.presence.StartTyping(c.UserContext(), user, c.Params("name")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// StopTyping DELETE /chat/typing.
func (h *PresenceHandler) StopTyping(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.presence.StopTyping(c.UserContext(), user); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Typing GET /chat/rooms/:name/typing.
func (h *PresenceHandler) Typing(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.presence.TypingUsers(c.UserContext(), user, c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": users})
}

// Online GET /chat/online.
func (h *PresenceHandler) Online(c *fiber.Ctx) error {
	users, err := h.presence.OnlineUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": users})
}
