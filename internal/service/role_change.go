package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
)

// UserWriteEvent describes a committed user write. PreviousRole is nil for creations.
type UserWriteEvent struct {
	UserID       string
	PreviousRole *domain.Role
	Role         domain.Role
	EmployeeID   string
}

// RoleChangeReactor keeps employee IDs consistent with roles after user writes. Its own
// writes go through the employee_id-only writer, so it never triggers itself.
type RoleChangeReactor struct {
	ids      *EmployeeIDService
	demotion config.DemotionPolicy
	logger   *zap.Logger
}

// NewRoleChangeReactor builds the reactor.
func NewRoleChangeReactor(ids *EmployeeIDService, demotion config.DemotionPolicy, logger *zap.Logger) *RoleChangeReactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if demotion == "" {
		demotion = config.DemotionPreserve
	}
	return &RoleChangeReactor{ids: ids, demotion: demotion, logger: logger}
}

// NeedsAllocation reports whether ev leaves a staff user without a matching identifier.
func NeedsAllocation(ev UserWriteEvent) bool {
	abbr, ok := ev.Role.Abbreviation()
	if !ok {
		return false
	}
	if ev.PreviousRole != nil && *ev.PreviousRole != ev.Role {
		return true
	}
	if ev.EmployeeID == "" {
		return true
	}
	current, ok := domain.EmployeeIDAbbreviation(ev.EmployeeID)
	return !ok || current != abbr
}

// Handle applies the reactor to ev and returns the user's employee ID afterwards.
func (r *RoleChangeReactor) Handle(ctx context.Context, ev UserWriteEvent) (string, error) {
	if !ev.Role.IsStaff() {
		if r.demotion == config.DemotionClear && ev.EmployeeID != "" {
			if err := r.ids.Clear(ctx, ev.UserID, ev.Role); err != nil {
				return ev.EmployeeID, err
			}
			r.logger.Info("employee id cleared on demotion",
				zap.String("user_id", ev.UserID),
				zap.String("employee_id", ev.EmployeeID))
			return "", nil
		}
		return ev.EmployeeID, nil
	}
	if !NeedsAllocation(ev) {
		return ev.EmployeeID, nil
	}
	id, err := r.ids.AssignNext(ctx, ev.UserID, ev.Role)
	if err != nil {
		return ev.EmployeeID, err
	}
	r.logger.Info("employee id assigned",
		zap.String("user_id", ev.UserID),
		zap.String("role", string(ev.Role)),
		zap.String("employee_id", id))
	return id, nil
}
