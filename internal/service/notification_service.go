package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/events"
	"github.com/spec-kit/staffchat/internal/repository"
)

// Notification channels.
const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

// Notification is one delivery decided for a recipient.
type Notification struct {
	UserID    string
	Channel   string
	MessageID int64
	Room      string
	Mention   bool
}

// NotificationService handles emitting notifications for appended messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	rooms      repository.RoomRepository
	prefs      *PreferenceService
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, store *repository.Store, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		rooms:      store.Rooms,
		prefs:      NewPreferenceService(store.Preferences),
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventMessageAppended, n.handleMessageAppended)
}

func (n *NotificationService) handleMessageAppended(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessageAppendedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.Notify(ctx, payload)
	return nil
}

// Notify decides recipients for a message and sends the stubs. Mentioned users are notified
// unless they opted out entirely; other participants only when they asked for everything.
func (n *NotificationService) Notify(ctx context.Context, payload events.MessageAppendedPayload) []Notification {
	msg := payload.Message
	mentioned := make(map[string]bool, len(msg.Mentions))
	recipients := make([]string, 0, len(msg.Mentions))
	for _, id := range msg.Mentions {
		if id != msg.AuthorID && !mentioned[id] {
			mentioned[id] = true
			recipients = append(recipients, id)
		}
	}
	if room, err := n.rooms.GetByID(ctx, msg.RoomID); err == nil {
		for _, id := range room.Participants {
			if id != msg.AuthorID && !mentioned[id] {
				recipients = append(recipients, id)
			}
		}
	} else {
		n.logger.Warn("notification room lookup failed", zap.String("room_id", msg.RoomID), zap.Error(err))
	}

	var sent []Notification
	for _, userID := range recipients {
		pref, err := n.prefs.Get(ctx, userID)
		if err != nil {
			n.logger.Warn("notification preference lookup failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		isMention := mentioned[userID]
		switch pref.NotifyFor {
		case domain.NotifyNone:
			continue
		case domain.NotifyMentions:
			if !isMention {
				continue
			}
		}
		base := Notification{UserID: userID, MessageID: msg.ID, Room: payload.RoomName, Mention: isMention}
		if pref.EmailEnabled && n.sendEmailNotificationStub(ctx, base) {
			base.Channel = ChannelEmail
			sent = append(sent, base)
		}
		if pref.PushEnabled && n.sendWebhookNotificationStub(ctx, base) {
			base.Channel = ChannelWebhook
			sent = append(sent, base)
		}
	}
	return sent
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, note Notification) bool {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return false
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("user_id", note.UserID),
		zap.String("room", note.Room),
		zap.Int64("message_id", note.MessageID),
		zap.Bool("mention", note.Mention))
	return true
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, note Notification) bool {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return false
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("user_id", note.UserID),
		zap.String("room", note.Room),
		zap.Int64("message_id", note.MessageID),
		zap.Bool("mention", note.Mention))
	return true
}
