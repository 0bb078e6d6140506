package service

import (
	"context"
	"errors"

	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

// PreferenceService reads and writes notification preferences.
type PreferenceService struct {
	prefs repository.PreferenceRepository
}

// NewPreferenceService builds the service.
func NewPreferenceService(prefs repository.PreferenceRepository) *PreferenceService {
	return &PreferenceService{prefs: prefs}
}

// PreferenceUpdate carries optional preference changes.
type PreferenceUpdate struct {
	NotifyFor    *domain.NotifyFor
	EmailEnabled *bool
	PushEnabled  *bool
	SoundEnabled *bool
}

// Get returns the stored preferences or the defaults.
func (s *PreferenceService) Get(ctx context.Context, userID string) (domain.NotificationPreference, error) {
	pref, err := s.prefs.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.DefaultNotificationPreference(userID), nil
	}
	if err != nil {
		return domain.NotificationPreference{}, storageError(err, "preference")
	}
	return *pref, nil
}

// Update merges in into the current preferences and stores the result.
func (s *PreferenceService) Update(ctx context.Context, userID string, in PreferenceUpdate) (domain.NotificationPreference, error) {
	pref, err := s.Get(ctx, userID)
	if err != nil {
		return pref, err
	}
	if in.NotifyFor != nil {
		if !in.NotifyFor.Valid() {
			return pref, errorutil.NewValidationError("notify_for must be all, mentions or none",
				map[string]any{"notify_for": *in.NotifyFor})
		}
		pref.NotifyFor = *in.NotifyFor
	}
	if in.EmailEnabled != nil {
		pref.EmailEnabled = *in.EmailEnabled
	}
	if in.PushEnabled != nil {
		pref.PushEnabled = *in.PushEnabled
	}
	if in.SoundEnabled != nil {
		pref.SoundEnabled = *in.SoundEnabled
	}
	if err := s.prefs.Upsert(ctx, &pref); err != nil {
		return pref, storageError(err, "preference")
	}
	return pref, nil
}
