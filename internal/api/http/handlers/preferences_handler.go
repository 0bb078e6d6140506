package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/api/dto"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/service"
)

// PreferencesHandler reads and writes notification preferences.
type PreferencesHandler struct {
	prefs *service.PreferenceService
}

// NewPreferencesHandler constructs handler.
func NewPreferencesHandler(prefs *service.PreferenceService) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs}
}

// Get GET /chat/preferences.
func (h *PreferencesHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	prefs, err := h.prefs.Get(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPreferencesResponse(prefs)})
}

// Update PUT /chat/preferences.
func (h *PreferencesHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.PreferencesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	in := service.PreferenceUpdate{
		EmailEnabled: req.EmailEnabled,
		PushEnabled:  req.PushEnabled,
		SoundEnabled: req.SoundEnabled,
	}
	if req.NotifyFor != nil {
		notify := domain.NotifyFor(*req.NotifyFor)
		in.NotifyFor = &notify
	}
	prefs, err := h.prefs.Update(c.UserContext(), user.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPreferencesResponse(prefs)})
}
