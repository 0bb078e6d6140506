package service

import (
	"context"
	"errors"

	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// storageError maps repository sentinels onto domain errors. Domain errors and context
// errors pass through untouched.
func storageError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var domainErr *errorutil.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return errorutil.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrDuplicate):
		return errorutil.NewConflict(resource+" already exists", nil)
	case repository.IsTransient(err):
		return errorutil.NewTransient(err)
	default:
		return errorutil.NewStorage(err)
	}
}

func isNotFound(err error) bool {
	return errorutil.HasCode(err, errorutil.CodeNotFound)
}
