package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
)

// PresenceService tracks who is online and who is typing where.
type PresenceService struct {
	activity repository.ActivityRepository
	users    repository.UserRepository
	lookup   roomLookup
	pub      publisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewPresenceService builds the service. bus may be nil.
func NewPresenceService(store *repository.Store, bus broadcast.Bus, logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{
		activity: store.Activity,
		users:    store.Users,
		lookup:   roomLookup{rooms: store.Rooms},
		pub:      publisher{bus: bus, logger: logger},
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PresenceEvent is published on the online_users key.
type PresenceEvent struct {
	User   UserView `json:"user"`
	Online bool     `json:"online"`
}

// TypingEvent is published on a room key.
type TypingEvent struct {
	User   UserView `json:"user"`
	Typing bool     `json:"typing"`
}

// MarkOnline records activity for userID. Records touched within the last minute are left
// alone. A transition from offline publishes user_online.
func (s *PresenceService) MarkOnline(ctx context.Context, userID string) error {
	now := s.now()
	current, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	wasOnline := current.IsOnline(now)
	if wasOnline && now.Sub(current.LastActivity) < domain.ActivityRewriteInterval {
		return nil
	}
	current.Online = true
	current.LastActivity = now
	if err := s.activity.Upsert(ctx, current); err != nil {
		return storageError(err, "activity")
	}
	if !wasOnline {
		s.publishPresence(ctx, userID, true)
	}
	return nil
}

// StartTyping marks user as typing in the named room.
func (s *PresenceService) StartTyping(ctx context.Context, user *domain.User, roomName string) error {
	room, err := s.lookup.accessible(ctx, user, roomName)
	if err != nil {
		return err
	}
	now := s.now()
	current, err := s.load(ctx, user.ID)
	if err != nil {
		return err
	}
	wasOnline := current.IsOnline(now)
	roomID := room.ID
	current.Typing = true
	current.TypingRoomID = &roomID
	current.LastTypingUpdate = now
	current.Online = true
	current.LastActivity = now
	if err := s.activity.Upsert(ctx, current); err != nil {
		return storageError(err, "activity")
	}
	if !wasOnline {
		s.publishPresence(ctx, user.ID, true)
	}
	s.pub.publish(ctx, broadcast.EventTyping, room.BroadcastKey(), TypingEvent{User: NewUserView(user), Typing: true})
	return nil
}

// StopTyping clears the typing flag and tells the previous room the user stopped.
func (s *PresenceService) StopTyping(ctx context.Context, user *domain.User) error {
	current, err := s.load(ctx, user.ID)
	if err != nil {
		return err
	}
	previousRoom := current.TypingRoomID
	current.Typing = false
	current.TypingRoomID = nil
	current.LastTypingUpdate = s.now()
	if err := s.activity.Upsert(ctx, current); err != nil {
		return storageError(err, "activity")
	}
	if previousRoom != nil {
		if room, err := s.lookup.rooms.GetByID(ctx, *previousRoom); err == nil {
			s.pub.publish(ctx, broadcast.EventTyping, room.BroadcastKey(), TypingEvent{User: NewUserView(user), Typing: false})
		}
	}
	return nil
}

// Activity returns the stored record for userID, or an empty one.
func (s *PresenceService) Activity(ctx context.Context, userID string) (*domain.Activity, error) {
	return s.load(ctx, userID)
}

// TypingUsers lists users typing in the room within the typing window, never the observer.
func (s *PresenceService) TypingUsers(ctx context.Context, observer *domain.User, roomName string) ([]UserView, error) {
	room, err := s.lookup.accessible(ctx, observer, roomName)
	if err != nil {
		return nil, err
	}
	now := s.now()
	records, err := s.activity.ListTyping(ctx, room.ID, now.Add(-domain.TypingWindow))
	if err != nil {
		return nil, storageError(err, "activity")
	}
	var ids []string
	for i := range records {
		if records[i].UserID != observer.ID && records[i].IsTypingIn(room.ID, now) {
			ids = append(ids, records[i].UserID)
		}
	}
	return s.userViews(ctx, ids)
}

// OnlineUsers lists users active within the online window.
func (s *PresenceService) OnlineUsers(ctx context.Context) ([]UserView, error) {
	now := s.now()
	records, err := s.activity.ListOnline(ctx, now.Add(-domain.OnlineWindow))
	if err != nil {
		return nil, storageError(err, "activity")
	}
	var ids []string
	for i := range records {
		if records[i].IsOnline(now) {
			ids = append(ids, records[i].UserID)
		}
	}
	return s.userViews(ctx, ids)
}

// SweepOffline clears the online flag of users idle past the online window and publishes
// user_offline for each.
func (s *PresenceService) SweepOffline(ctx context.Context) (int, error) {
	ids, err := s.activity.MarkOffline(ctx, s.now().Add(-domain.OnlineWindow))
	if err != nil {
		return 0, storageError(err, "activity")
	}
	for _, id := range ids {
		s.publishPresence(ctx, id, false)
	}
	return len(ids), nil
}

// CleanupStale deletes offline activity records idle for more than days.
func (s *PresenceService) CleanupStale(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = 7
	}
	n, err := s.activity.DeleteStale(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return 0, storageError(err, "activity")
	}
	return n, nil
}

func (s *PresenceService) load(ctx context.Context, userID string) (*domain.Activity, error) {
	current, err := s.activity.Get(ctx, userID)
	if err == nil {
		return current, nil
	}
	if mapped := storageError(err, "activity"); !isNotFound(mapped) {
		return nil, mapped
	}
	return &domain.Activity{UserID: userID}, nil
}

func (s *PresenceService) userViews(ctx context.Context, ids []string) ([]UserView, error) {
	out := make([]UserView, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, storageError(err, "user")
	}
	for i := range users {
		out = append(out, NewUserView(&users[i]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *PresenceService) publishPresence(ctx context.Context, userID string, online bool) {
	if s.pub.bus == nil {
		return
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Debug("presence publish skipped", zap.String("user_id", userID), zap.Error(err))
		return
	}
	eventType := broadcast.EventUserOffline
	if online {
		eventType = broadcast.EventUserOnline
	}
	s.pub.publish(ctx, eventType, domain.OnlineUsersKey, PresenceEvent{User: NewUserView(user), Online: online})
}
