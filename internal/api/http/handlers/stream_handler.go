package handlers

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/service"
)

const defaultHeartbeat = 25 * time.Second

// StreamHandler pushes bus envelopes to clients as server-sent events.
type StreamHandler struct {
	bus       broadcast.Bus
	rooms     *service.RoomService
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewStreamHandler constructs handler. heartbeat <= 0 uses 25s.
func NewStreamHandler(bus broadcast.Bus, rooms *service.RoomService, heartbeat time.Duration, logger *zap.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{bus: bus, rooms: rooms, heartbeat: heartbeat, logger: logger}
}

// Room GET /chat/rooms/:name/stream. Access is checked once, at subscribe time.
func (h *StreamHandler) Room(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	room, err := h.rooms.GetRoom(c.UserContext(), user, c.Params("name"))
	if err != nil {
		return err
	}
	return h.stream(c, room.BroadcastKey(), user.ID)
}

// Online GET /chat/online/stream.
func (h *StreamHandler) Online(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return h.stream(c, domain.OnlineUsersKey, user.ID)
}

func (h *StreamHandler) stream(c *fiber.Ctx, key, userID string) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.bus.Subscribe(key)
	heartbeat := h.heartbeat
	logger := h.logger.With(zap.String("key", key), zap.String("user_id", userID), zap.String("subscription", sub.ID))
	logger.Debug("stream opened")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			sub.Close()
			logger.Debug("stream closed", zap.Int64("dropped", sub.Dropped()))
		}()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		if _, err := io.WriteString(w, ": connected\n\n"); err != nil || w.Flush() != nil {
			return
		}
		for {
			select {
			case <-sub.Done():
				return
			case env := <-sub.C():
				if err := writeEvent(w, env); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

// writeEvent renders env as one SSE frame. Envelope data is compact JSON, so it never
// spans lines.
func writeEvent(w io.Writer, env broadcast.Envelope) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, env.Data)
	return err
}
