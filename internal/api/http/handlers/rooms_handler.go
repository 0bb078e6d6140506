package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/api/dto"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/service"
)

// RoomsHandler manages the room registry endpoints.
type RoomsHandler struct {
	rooms *service.RoomService
}

// NewRoomsHandler constructs handler.
func NewRoomsHandler(rooms *service.RoomService) *RoomsHandler {
	return &RoomsHandler{rooms: rooms}
}

// List GET /chat/rooms.
func (h *RoomsHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	summaries, err := h.rooms.ListAccessibleRooms(c.UserContext(), user)
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(summaries))
	for i := range summaries {
		items = append(items, fiber.Map{
			"room":         dto.NewRoomResponse(&summaries[i].Room),
			"last_message": summaries[i].LastMessage,
			"unread":       summaries[i].Unread,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST /chat/rooms.
func (h *RoomsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateRoomRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	room, err := h.rooms.CreateRoom(c.UserContext(), user, service.CreateRoomInput{
		Name:        req.Name,
		Kind:        domain.RoomKind(req.Kind),
		Description: req.Description,
		AutoJoin:    req.AutoJoin,
		ProjectID:   req.ProjectID,
		Members:     req.Members,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRoomResponse(room)})
}

// Get GET /chat/rooms/:name.
func (h *RoomsHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	room, err := h.rooms.GetRoom(c.UserContext(), user, c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRoomResponse(room)})
}

// Update PATCH /chat/rooms/:name.
func (h *RoomsHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRoomRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	room, err := h.rooms.UpdateRoom(c.UserContext(), user, c.Params("name"), service.UpdateRoomInput{
		Description: req.Description,
		AutoJoin:    req.AutoJoin,
		Active:      req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRoomResponse(room)})
}

// Delete DELETE /chat/rooms/:name deactivates the room.
func (h *RoomsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.rooms.DeactivateRoom(c.UserContext(), user, c.Params("name")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Members GET /chat/rooms/:name/members.
func (h *RoomsHandler) Members(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	members, err := h.rooms.Members(c.UserContext(), user, c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": members})
}

// Invite POST /chat/rooms/:name/members.
func (h *RoomsHandler) Invite(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.InviteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	joined, err := h.rooms.InviteMembers(c.UserContext(), user, c.Params("name"), req.Usernames)
	if err != nil {
		return err
	}
	if joined == nil {
		joined = []service.UserView{}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"joined": joined}})
}

// RemoveMember DELETE /chat/rooms/:name/members/:username.
func (h *RoomsHandler) RemoveMember(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.rooms.RemoveMember(c.UserContext(), user, c.Params("name"), c.Params("username")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
