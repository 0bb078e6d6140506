package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/internal/service"
)

// SearchHandler serves message search.
type SearchHandler struct {
	search *service.SearchService
}

// NewSearchHandler constructs handler.
func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search GET /chat/search?q=&mode=&room=&user=&from=&to=&page=&limit=.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return err
	}
	result, err := h.search.Search(c.UserContext(), user, service.SearchQuery{
		Q:             c.Query("q"),
		Mode:          repository.SearchMode(c.Query("mode", string(repository.SearchText))),
		Room:          c.Query("room"),
		MentionedUser: c.Query("user"),
		From:          from,
		To:            to,
		Page:          c.QueryInt("page", 1),
		Limit:         c.QueryInt("limit", 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
