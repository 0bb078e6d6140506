package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/api/dto"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/internal/service"
)

// AdminHandler is the staff-only user administration surface.
type AdminHandler struct {
	identity *service.IdentityService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(identity *service.IdentityService) *AdminHandler {
	return &AdminHandler{identity: identity}
}

// ListUsers GET /admin/users?role=&staff=&limit=&offset=.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	filter := repository.UserFilter{
		StaffOnly: c.QueryBool("staff", false),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}
	if raw := c.Query("role"); raw != "" {
		role := domain.Role(raw)
		filter.Role = &role
	}
	users, err := h.identity.ListUsers(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateUser PATCH /admin/users/:id. A role change runs the employee-ID reaction.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	in := service.UpdateUserInput{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Department: req.Department,
		Active:     req.Active,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		in.Role = &role
	}
	user, err := h.identity.UpdateUser(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// SetGroups PUT /admin/users/:id/groups.
func (h *AdminHandler) SetGroups(c *fiber.Ctx) error {
	var req dto.SetGroupsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.identity.SetGroups(c.UserContext(), c.Params("id"), req.Groups)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Ban POST /admin/users/:id/ban.
func (h *AdminHandler) Ban(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.BanRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.identity.BanFromChat(c.UserContext(), actor.ID, c.Params("id"), req.Reason, req.Until)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// LiftBan DELETE /admin/users/:id/ban.
func (h *AdminHandler) LiftBan(c *fiber.Ctx) error {
	user, err := h.identity.LiftChatBan(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// BackfillEmployeeIDs POST /admin/employee-ids/backfill.
func (h *AdminHandler) BackfillEmployeeIDs(c *fiber.Ctx) error {
	assigned, err := h.identity.BackfillEmployeeIDs(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"assigned": assigned, "count": len(assigned)}})
}
