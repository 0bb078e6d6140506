package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/observability"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// EmployeeIDService issues OG/{ABBR}/{N} identifiers. Every scan and write happens under the
// role lock provided by the user repository.
type EmployeeIDService struct {
	users       repository.UserRepository
	maxAttempts int
	backoff     time.Duration
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewEmployeeIDService builds the allocator.
func NewEmployeeIDService(users repository.UserRepository, cfg config.IdentityConfig, metrics *observability.Metrics, logger *zap.Logger) *EmployeeIDService {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeIDService{
		users:       users,
		maxAttempts: attempts,
		backoff:     cfg.RetryBackoff(),
		metrics:     metrics,
		logger:      logger,
	}
}

// Allocate computes the next identifier for role without binding it to a user.
func (s *EmployeeIDService) Allocate(ctx context.Context, role domain.Role) (string, error) {
	var id string
	err := s.withLock(ctx, role, func(scope repository.EmployeeIDScope, abbr string) error {
		id = domain.FormatEmployeeID(abbr, domain.NextEmployeeNumber(scope.ExistingIDs()))
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AssignNext computes the next identifier for role and writes it to userID in the same
// lock scope.
func (s *EmployeeIDService) AssignNext(ctx context.Context, userID string, role domain.Role) (string, error) {
	var id string
	err := s.withLock(ctx, role, func(scope repository.EmployeeIDScope, abbr string) error {
		id = domain.FormatEmployeeID(abbr, domain.NextEmployeeNumber(scope.ExistingIDs()))
		return scope.AssignEmployeeID(ctx, userID, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Clear blanks the identifier of userID. It touches only the employee_id column.
func (s *EmployeeIDService) Clear(ctx context.Context, userID string, role domain.Role) error {
	err := s.users.WithEmployeeIDLock(ctx, role, "", func(scope repository.EmployeeIDScope) error {
		return scope.AssignEmployeeID(ctx, userID, "")
	})
	return storageError(err, "user")
}

func (s *EmployeeIDService) withLock(ctx context.Context, role domain.Role, fn func(repository.EmployeeIDScope, string) error) error {
	abbr, ok := role.Abbreviation()
	if !ok {
		return errorutil.NewInvalidRole(string(role))
	}
	prefix := domain.EmployeeIDPrefix(abbr)

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.users.WithEmployeeIDLock(ctx, role, prefix, func(scope repository.EmployeeIDScope) error {
			return fn(scope, abbr)
		})
		if err == nil {
			s.metrics.RecordAllocation(string(role), "ok")
			return nil
		}
		if !repository.IsTransient(err) || attempt == s.maxAttempts {
			break
		}
		s.metrics.RecordAllocation(string(role), "retry")
		s.logger.Warn("employee id allocation retry",
			zap.String("role", string(role)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	s.metrics.RecordAllocation(string(role), "error")
	return storageError(err, "user")
}
