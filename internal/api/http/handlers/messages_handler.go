package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staffchat/internal/api/dto"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/service"
	apperrors "github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// MessagesHandler serves the message log, read status and unread counts.
type MessagesHandler struct {
	messages *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messages *service.MessageService) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

// List GET /chat/rooms/:name/messages?before=&after=&limit=.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	req := service.PageRequest{Mode: service.PageInitial, Limit: c.QueryInt("limit", 0)}
	before, hasBefore, err := queryInt64(c, "before")
	if err != nil {
		return err
	}
	after, hasAfter, err := queryInt64(c, "after")
	if err != nil {
		return err
	}
	switch {
	case hasBefore && hasAfter:
		return apperrors.NewValidationError("before and after are mutually exclusive", nil)
	case hasBefore:
		req.Mode, req.Cursor = service.PageBefore, before
	case hasAfter:
		req.Mode, req.Cursor = service.PageAfter, after
	}
	page, err := h.messages.List(c.UserContext(), user, c.Params("name"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": page})
}

// Send POST /chat/rooms/:name/messages. Accepts JSON or a multipart form with a "file" part.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	in, err := sendInput(c)
	if err != nil {
		return err
	}
	in.RoomName = c.Params("name")
	view, err := h.messages.Append(c.UserContext(), user, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": view})
}

func sendInput(c *fiber.Ctx) (service.AppendInput, error) {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return multipartInput(c)
	}
	var req dto.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return service.AppendInput{}, err
	}
	in := service.AppendInput{Body: req.Body, ReplyToID: req.ReplyToID}
	if req.Attachment != nil {
		in.Attachment = &domain.Attachment{
			FileName:    req.Attachment.FileName,
			ContentType: req.Attachment.ContentType,
			Data:        req.Attachment.Data,
		}
	}
	return in, nil
}

func multipartInput(c *fiber.Ctx) (service.AppendInput, error) {
	in := service.AppendInput{Body: c.FormValue("body")}
	if raw := strings.TrimSpace(c.FormValue("reply_to_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return in, apperrors.NewValidationError("invalid reply_to_id", map[string]any{"reply_to_id": raw})
		}
		in.ReplyToID = &id
	}
	header, err := c.FormFile("file")
	if err != nil {
		// no file part; a text-only form post
		return in, nil
	}
	if header.Size > service.MaxAttachmentSize {
		return in, apperrors.NewInvalid(apperrors.CodeUnsupportedAttachment, "file exceeds 10 MiB",
			map[string]any{"file_name": header.Filename, "size": header.Size})
	}
	f, err := header.Open()
	if err != nil {
		return in, apperrors.NewValidationError("unreadable file", nil)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return in, apperrors.NewValidationError("unreadable file", nil)
	}
	in.Attachment = &domain.Attachment{
		FileName:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}
	return in, nil
}

// Edit PATCH /chat/messages/:id.
func (h *MessagesHandler) Edit(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.EditMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.messages.Edit(c.UserContext(), user, id, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// Attachment GET /chat/messages/:id/attachment streams the stored file.
func (h *MessagesHandler) Attachment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	msg, _, err := h.messages.Get(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	if !msg.HasAttachment() {
		return apperrors.NewNotFound("attachment", map[string]any{"message_id": id})
	}
	contentType := msg.Attachment.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", msg.Attachment.FileName))
	return c.Send(msg.Attachment.Data)
}

// MarkRead POST /chat/messages/:id/read.
func (h *MessagesHandler) MarkRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	created, err := h.messages.MarkRead(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message_id": id, "newly_read": created}})
}

// MarkRoomRead POST /chat/rooms/:name/read.
func (h *MessagesHandler) MarkRoomRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.messages.MarkRoomRead(c.UserContext(), user, c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"room": c.Params("name"), "marked": n}})
}

// Unread GET /chat/unread returns per-room counts and their total.
func (h *MessagesHandler) Unread(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	byRoom, err := h.messages.UnreadByRoom(c.UserContext(), user)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range byRoom {
		total += n
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"total": total, "rooms": byRoom}})
}
