package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/events"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// IdentityService owns user writes and runs the post-write hooks: the role-change reactor,
// department group sync and the user events consumed by the auto-join reactor.
type IdentityService struct {
	users      repository.UserRepository
	reactor    *RoleChangeReactor
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewIdentityService builds the service. dispatcher may be nil.
func NewIdentityService(users repository.UserRepository, reactor *RoleChangeReactor, dispatcher events.Dispatcher, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		users:      users,
		reactor:    reactor,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateUserInput describes a new identity.
type CreateUserInput struct {
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         domain.Role
	EmployeeID   string
	Department   string
	Groups       []string
}

// UpdateUserInput carries optional field changes. Nil fields are left untouched.
type UpdateUserInput struct {
	Email      *string
	FirstName  *string
	LastName   *string
	Role       *domain.Role
	Department *string
	Active     *bool
}

// CreateUser stores a user and runs the post-write hooks.
func (s *IdentityService) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, errorutil.NewValidationError("username is required", map[string]any{"field": "username"})
	}
	role := in.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.Valid() {
		return nil, errorutil.NewInvalidRole(string(role))
	}

	user := &domain.User{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: in.PasswordHash,
		Role:         role,
		EmployeeID:   in.EmployeeID,
		Department:   strings.TrimSpace(in.Department),
		Groups:       normalizeGroups(in.Groups),
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storageError(err, "user")
	}

	id, err := s.reactor.Handle(ctx, UserWriteEvent{UserID: user.ID, Role: user.Role, EmployeeID: user.EmployeeID})
	if err != nil {
		// a staff role without an identifier must not persist
		s.revertRole(ctx, user, domain.RoleCustomer)
		return nil, err
	}
	user.EmployeeID = id

	if _, err := s.syncDepartmentGroups(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventUserCreated, user.ID, events.UserCreatedPayload{User: *user}))
	return user, nil
}

// UpdateUser applies in to the user and runs the post-write hooks.
func (s *IdentityService) UpdateUser(ctx context.Context, userID string, in UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storageError(err, "user")
	}
	previous := user.Role

	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, errorutil.NewInvalidRole(string(*in.Role))
		}
		user.Role = *in.Role
	}
	if in.Email != nil {
		user.Email = strings.TrimSpace(*in.Email)
	}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Department != nil {
		user.Department = strings.TrimSpace(*in.Department)
	}
	if in.Active != nil {
		user.Active = *in.Active
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, storageError(err, "user")
	}

	id, err := s.reactor.Handle(ctx, UserWriteEvent{
		UserID:       user.ID,
		PreviousRole: &previous,
		Role:         user.Role,
		EmployeeID:   user.EmployeeID,
	})
	if err != nil {
		if user.Role != previous {
			s.revertRole(ctx, user, previous)
		}
		return nil, err
	}
	user.EmployeeID = id

	added, err := s.syncDepartmentGroups(ctx, user)
	if err != nil {
		return nil, err
	}
	s.publishGroupChange(ctx, user.ID, added, nil)
	return user, nil
}

// revertRole restores role after a failed employee ID reaction so the stored role always
// agrees with the stored identifier. Failures are logged; backfill-employee-ids repairs them.
func (s *IdentityService) revertRole(ctx context.Context, user *domain.User, role domain.Role) {
	user.Role = role
	if err := s.users.Update(context.WithoutCancel(ctx), user); err != nil {
		s.logger.Error("role revert failed", zap.String("user_id", user.ID), zap.String("role", string(role)), zap.Error(err))
		return
	}
	s.logger.Warn("role reverted after employee id failure", zap.String("user_id", user.ID), zap.String("role", string(role)))
}

// GetUser loads a user by ID.
func (s *IdentityService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storageError(err, "user")
	}
	return user, nil
}

// ListUsers returns users matching filter.
func (s *IdentityService) ListUsers(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, storageError(err, "user")
	}
	return users, nil
}

// AddGroups adds group memberships and emits a change event for the ones that were new.
func (s *IdentityService) AddGroups(ctx context.Context, userID string, groups []string) ([]string, error) {
	added, err := s.users.AddGroups(ctx, userID, normalizeGroups(groups))
	if err != nil {
		return nil, storageError(err, "user")
	}
	s.publishGroupChange(ctx, userID, added, nil)
	return added, nil
}

// RemoveGroups removes group memberships and emits a change event for the ones that existed.
func (s *IdentityService) RemoveGroups(ctx context.Context, userID string, groups []string) ([]string, error) {
	removed, err := s.users.RemoveGroups(ctx, userID, normalizeGroups(groups))
	if err != nil {
		return nil, storageError(err, "user")
	}
	s.publishGroupChange(ctx, userID, nil, removed)
	return removed, nil
}

// SetGroups replaces the group set and emits one event describing the difference.
func (s *IdentityService) SetGroups(ctx context.Context, userID string, groups []string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storageError(err, "user")
	}
	want := normalizeGroups(groups)
	var drop []string
	for _, g := range user.Groups {
		if !containsFold(want, g) {
			drop = append(drop, g)
		}
	}

	added, err := s.users.AddGroups(ctx, userID, want)
	if err != nil {
		return nil, storageError(err, "user")
	}
	removed, err := s.users.RemoveGroups(ctx, userID, drop)
	if err != nil {
		return nil, storageError(err, "user")
	}
	s.publishGroupChange(ctx, userID, added, removed)
	return s.GetUser(ctx, userID)
}

// BanFromChat blocks userID from posting. A nil until bans permanently.
func (s *IdentityService) BanFromChat(ctx context.Context, actorID, userID, reason string, until *time.Time) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storageError(err, "user")
	}
	if until != nil && !until.After(s.now()) {
		return nil, errorutil.NewValidationError("ban expiry must be in the future", map[string]any{"field": "until"})
	}
	user.BannedFromChat = true
	user.BanExpiresAt = until
	user.BanReason = strings.TrimSpace(reason)
	user.BannedByID = &actorID
	if err := s.users.Update(ctx, user); err != nil {
		return nil, storageError(err, "user")
	}
	s.logger.Info("user banned from chat", zap.String("user_id", userID), zap.String("actor_id", actorID))
	return user, nil
}

// LiftChatBan clears any chat ban on userID.
func (s *IdentityService) LiftChatBan(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storageError(err, "user")
	}
	user.BannedFromChat = false
	user.BanExpiresAt = nil
	user.BanReason = ""
	user.BannedByID = nil
	if err := s.users.Update(ctx, user); err != nil {
		return nil, storageError(err, "user")
	}
	return user, nil
}

// BackfillEmployeeIDs runs the role-change reactor for every staff user and returns the IDs
// it assigned, keyed by user ID.
func (s *IdentityService) BackfillEmployeeIDs(ctx context.Context) (map[string]string, error) {
	users, err := s.users.List(ctx, repository.UserFilter{StaffOnly: true})
	if err != nil {
		return nil, storageError(err, "user")
	}
	assigned := make(map[string]string)
	for _, u := range users {
		ev := UserWriteEvent{UserID: u.ID, Role: u.Role, EmployeeID: u.EmployeeID}
		if !NeedsAllocation(ev) {
			continue
		}
		id, err := s.reactor.Handle(ctx, ev)
		if err != nil {
			return assigned, err
		}
		assigned[u.ID] = id
	}
	return assigned, nil
}

// syncDepartmentGroups adds the groups implied by the department, plus the staff group for
// staff roles. Groups are never removed here.
func (s *IdentityService) syncDepartmentGroups(ctx context.Context, user *domain.User) ([]string, error) {
	groups := domain.DepartmentGroups(user.Department)
	if len(groups) == 0 {
		return nil, nil
	}
	if user.IsStaff() {
		groups = append(groups, domain.StaffGroup)
	}
	added, err := s.users.AddGroups(ctx, user.ID, groups)
	if err != nil {
		return nil, storageError(err, "user")
	}
	if len(added) > 0 {
		user.Groups = normalizeGroups(append(user.Groups, added...))
	}
	return added, nil
}

func (s *IdentityService) publishGroupChange(ctx context.Context, userID string, added, removed []string) {
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	s.publish(ctx, events.NewEvent(events.EventUserGroupsChanged, userID, events.UserGroupsChangedPayload{
		UserID:  userID,
		Added:   added,
		Removed: removed,
	}))
}

func (s *IdentityService) publish(ctx context.Context, ev events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, ev)
}

func normalizeGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" || containsFold(out, g) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
