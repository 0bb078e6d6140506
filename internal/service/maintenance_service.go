package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
)

// GeneralAnnouncementsRoom is the company-wide room created by EnsureDefaultRooms.
const GeneralAnnouncementsRoom = "general-announcements"

// DefaultDepartments seeds one {dept}-chat room each.
var DefaultDepartments = []string{
	"management", "sales", "operations", "technical", "hr", "finance",
	"marketing", "customer-service", "projects", "inventory",
}

// MaintenanceService bundles the operator jobs run from chatctl.
type MaintenanceService struct {
	rooms    repository.RoomRepository
	users    repository.UserRepository
	identity *IdentityService
	messages *MessageService
	presence *PresenceService
	logger   *zap.Logger
}

// NewMaintenanceService builds the service.
func NewMaintenanceService(store *repository.Store, identity *IdentityService, messages *MessageService, presence *PresenceService, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		rooms:    store.Rooms,
		users:    store.Users,
		identity: identity,
		messages: messages,
		presence: presence,
		logger:   logger,
	}
}

// EnsureDefaultRooms creates the announcements room and the department rooms that do not
// exist yet. It returns the names created, or that would be created on a dry run.
func (s *MaintenanceService) EnsureDefaultRooms(ctx context.Context, dryRun bool) ([]string, error) {
	creator := s.systemUser(ctx)

	type seed struct {
		name        string
		kind        domain.RoomKind
		description string
	}
	seeds := []seed{{
		name:        GeneralAnnouncementsRoom,
		kind:        domain.RoomKindGeneral,
		description: "Company-wide announcements, updates, and important communications",
	}}
	for _, dept := range DefaultDepartments {
		title := titleWords(strings.ReplaceAll(dept, "-", " "))
		seeds = append(seeds, seed{
			name:        strings.ReplaceAll(strings.ToLower(dept), "_", "-") + "-chat",
			kind:        domain.RoomKindDepartment,
			description: "Department communication for " + title,
		})
	}

	var created []string
	for _, sd := range seeds {
		_, err := s.rooms.GetByName(ctx, sd.name)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return created, storageError(err, "room")
		}
		if dryRun {
			created = append(created, sd.name)
			continue
		}
		room := &domain.Room{
			Name:        sd.name,
			Kind:        sd.kind,
			Description: sd.description,
			Active:      true,
			AutoJoin:    true,
			CreatedByID: creator,
		}
		if err := s.rooms.Create(ctx, room); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return created, storageError(err, "room")
		}
		s.logger.Info("default room created", zap.String("room", room.Name))
		created = append(created, room.Name)
	}
	return created, nil
}

// CleanupActivity flips idle users offline and deletes offline records older than days.
func (s *MaintenanceService) CleanupActivity(ctx context.Context, days int) (offline, deleted int, err error) {
	if offline, err = s.presence.SweepOffline(ctx); err != nil {
		return 0, 0, err
	}
	if deleted, err = s.presence.CleanupStale(ctx, days); err != nil {
		return offline, 0, err
	}
	return offline, deleted, nil
}

// ClearChat deletes messages in the named rooms, or every room when names is empty,
// optionally only those older than before.
func (s *MaintenanceService) ClearChat(ctx context.Context, names []string, before *time.Time, dryRun bool) (int, error) {
	if len(names) == 0 {
		return s.messages.DeleteMessages(ctx, repository.MessageDeleteFilter{Before: before}, dryRun)
	}
	total := 0
	for _, name := range names {
		canonical, err := domain.CanonicalRoomName(name)
		if err != nil {
			continue
		}
		room, err := s.rooms.GetByName(ctx, canonical)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("clear chat: room not found", zap.String("room", canonical))
			continue
		}
		if err != nil {
			return total, storageError(err, "room")
		}
		roomID := room.ID
		n, err := s.messages.DeleteMessages(ctx, repository.MessageDeleteFilter{RoomID: &roomID, Before: before}, dryRun)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// RebuildMentions re-derives every message's mention set.
func (s *MaintenanceService) RebuildMentions(ctx context.Context) (int, error) {
	return s.messages.RebuildMentions(ctx)
}

// BackfillEmployeeIDs assigns identifiers to staff users missing a matching one.
func (s *MaintenanceService) BackfillEmployeeIDs(ctx context.Context) (map[string]string, error) {
	return s.identity.BackfillEmployeeIDs(ctx)
}

// systemUser picks a super admin, then any staff user, as creator of seeded rooms.
func (s *MaintenanceService) systemUser(ctx context.Context) *string {
	admin := domain.RoleSuperAdmin
	for _, filter := range []repository.UserFilter{{Role: &admin, Limit: 1}, {StaffOnly: true, Limit: 1}} {
		users, err := s.users.List(ctx, filter)
		if err == nil && len(users) > 0 {
			id := users[0].ID
			return &id
		}
	}
	return nil
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
