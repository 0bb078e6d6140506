package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
)

type userRepo struct {
	s *Store
}

func cloneUser(u *domain.User) *domain.User {
	out := *u
	out.Groups = append([]string(nil), u.Groups...)
	if u.BanExpiresAt != nil {
		t := *u.BanExpiresAt
		out.BanExpiresAt = &t
	}
	if u.BannedByID != nil {
		id := *u.BannedByID
		out.BannedByID = &id
	}
	return &out
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := cloneUser(user)
	stored.Groups = dedupeSorted(stored.Groups)
	user.Groups = append([]string(nil), stored.Groups...)
	r.s.users[user.ID] = stored
	return nil
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != user.ID && existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	next := cloneUser(user)
	next.EmployeeID = stored.EmployeeID
	next.Groups = stored.Groups
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	r.s.users[user.ID] = next
	user.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if u, ok := r.s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.filter(func(u *domain.User) bool {
		_, ok := want[u.ID]
		return ok
	}, byUsername), nil
}

func (r *userRepo) ListByUsernames(ctx context.Context, usernames []string) ([]domain.User, error) {
	want := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		want[name] = struct{}{}
	}
	return r.filter(func(u *domain.User) bool {
		_, ok := want[u.Username]
		return ok
	}, byUsername), nil
}

func (r *userRepo) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	users := r.filter(func(u *domain.User) bool {
		if filter.Role != nil && u.Role != *filter.Role {
			return false
		}
		if filter.StaffOnly && u.Role == domain.RoleCustomer {
			return false
		}
		return true
	}, byCreated)

	if filter.Offset > 0 {
		if filter.Offset >= len(users) {
			return nil, nil
		}
		users = users[filter.Offset:]
	}
	if filter.Limit > 0 && len(users) > filter.Limit {
		users = users[:filter.Limit]
	}
	return users, nil
}

func byUsername(a, b *domain.User) bool { return a.Username < b.Username }

func byCreated(a, b *domain.User) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (r *userRepo) filter(keep func(*domain.User) bool, less func(a, b *domain.User) bool) []domain.User {
	r.s.mu.RLock()
	matched := make([]*domain.User, 0)
	for _, u := range r.s.users {
		if keep(u) {
			matched = append(matched, cloneUser(u))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	out := make([]domain.User, len(matched))
	for i, u := range matched {
		out[i] = *u
	}
	return out
}

func (r *userRepo) AddGroups(ctx context.Context, userID string, groups []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var added []string
	for _, g := range dedupeSorted(groups) {
		if !contains(u.Groups, g) {
			u.Groups = append(u.Groups, g)
			added = append(added, g)
		}
	}
	sort.Strings(u.Groups)
	return added, nil
}

func (r *userRepo) RemoveGroups(ctx context.Context, userID string, groups []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	drop := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		drop[g] = struct{}{}
	}
	var removed []string
	kept := u.Groups[:0]
	for _, g := range u.Groups {
		if _, ok := drop[g]; ok {
			removed = append(removed, g)
			continue
		}
		kept = append(kept, g)
	}
	u.Groups = kept
	return removed, nil
}

func (r *userRepo) WithEmployeeIDLock(ctx context.Context, role domain.Role, prefix string, fn func(repository.EmployeeIDScope) error) error {
	unlock, err := r.s.roleLock(ctx, role)
	if err != nil {
		return err
	}
	defer unlock()

	r.s.mu.RLock()
	var ids []string
	for _, u := range r.s.users {
		if u.Role == role && strings.HasPrefix(u.EmployeeID, prefix) {
			ids = append(ids, u.EmployeeID)
		}
	}
	r.s.mu.RUnlock()

	scope := &employeeIDScope{s: r.s, ids: ids, pending: make(map[string]string)}
	if err := fn(scope); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for userID, id := range scope.pending {
		if u, ok := r.s.users[userID]; ok {
			u.EmployeeID = id
			u.UpdatedAt = now
		}
	}
	return nil
}

// employeeIDScope buffers writes until the lock callback succeeds, mirroring a rollback on error.
type employeeIDScope struct {
	s       *Store
	ids     []string
	pending map[string]string
}

func (e *employeeIDScope) ExistingIDs() []string {
	return e.ids
}

func (e *employeeIDScope) AssignEmployeeID(ctx context.Context, userID, employeeID string) error {
	e.s.mu.RLock()
	_, ok := e.s.users[userID]
	e.s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}
	e.pending[userID] = employeeID
	if employeeID != "" {
		e.ids = append(e.ids, employeeID)
	}
	return nil
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
