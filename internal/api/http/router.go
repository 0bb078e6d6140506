package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/api/http/handlers"
	"github.com/spec-kit/staffchat/internal/auth"
	"github.com/spec-kit/staffchat/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Rooms          *handlers.RoomsHandler
	Messages       *handlers.MessagesHandler
	Reactions      *handlers.ReactionsHandler
	Presence       *handlers.PresenceHandler
	Search         *handlers.SearchHandler
	Preferences    *handlers.PreferencesHandler
	Streams        *handlers.StreamHandler
	Admin          *handlers.AdminHandler
	Metrics        fiber.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// adminRoles may manage other users.
var adminRoles = []domain.Role{domain.RoleSuperAdmin, domain.RoleDirector, domain.RoleManager}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	chat := app.Group("/chat", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	chat.Get("/rooms", cfg.Rooms.List)
	chat.Post("/rooms", cfg.Rooms.Create)
	chat.Get("/rooms/:name", cfg.Rooms.Get)
	chat.Patch("/rooms/:name", cfg.Rooms.Update)
	chat.Delete("/rooms/:name", cfg.Rooms.Delete)
	chat.Get("/rooms/:name/members", cfg.Rooms.Members)
	chat.Post("/rooms/:name/members", cfg.Rooms.Invite)
	chat.Delete("/rooms/:name/members/:username", cfg.Rooms.RemoveMember)

	chat.Get("/rooms/:name/messages", cfg.Messages.List)
	chat.Post("/rooms/:name/messages", cfg.Messages.Send)
	chat.Post("/rooms/:name/read", cfg.Messages.MarkRoomRead)
	chat.Patch("/messages/:id", cfg.Messages.Edit)
	chat.Get("/messages/:id/attachment", cfg.Messages.Attachment)
	chat.Post("/messages/:id/read", cfg.Messages.MarkRead)
	chat.Get("/unread", cfg.Messages.Unread)

	chat.Post("/messages/:id/reactions", cfg.Reactions.Toggle)
	chat.Get("/messages/:id/reactions", cfg.Reactions.Summary)

	chat.Post("/rooms/:name/typing", cfg.Presence.StartTyping)
	chat.Get("/rooms/:name/typing", cfg.Presence.Typing)
	chat.Delete("/typing", cfg.Presence.StopTyping)
	chat.Get("/online", cfg.Presence.Online)

	chat.Get("/search", cfg.Search.Search)
	chat.Get("/preferences", cfg.Preferences.Get)
	chat.Put("/preferences", cfg.Preferences.Update)

	chat.Get("/rooms/:name/stream", cfg.Streams.Room)
	chat.Get("/online/stream", cfg.Streams.Online)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireStaff(adminRoles...))
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Patch("/users/:id", cfg.Admin.UpdateUser)
	admin.Put("/users/:id/groups", cfg.Admin.SetGroups)
	admin.Post("/users/:id/ban", cfg.Admin.Ban)
	admin.Delete("/users/:id/ban", cfg.Admin.LiftBan)
	admin.Post("/employee-ids/backfill", cfg.Admin.BackfillEmployeeIDs)
}
