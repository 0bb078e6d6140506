package domain

// NotifyFor selects which messages produce notifications.
type NotifyFor string

const (
	NotifyAll      NotifyFor = "all"
	NotifyMentions NotifyFor = "mentions"
	NotifyNone     NotifyFor = "none"
)

// Valid reports whether n is a known setting.
func (n NotifyFor) Valid() bool {
	return n == NotifyAll || n == NotifyMentions || n == NotifyNone
}

// NotificationPreference holds per-user chat notification settings.
type NotificationPreference struct {
	UserID       string
	NotifyFor    NotifyFor
	EmailEnabled bool
	PushEnabled  bool
	SoundEnabled bool
}

// DefaultNotificationPreference is used for users who never saved preferences.
func DefaultNotificationPreference(userID string) NotificationPreference {
	return NotificationPreference{
		UserID:       userID,
		NotifyFor:    NotifyAll,
		EmailEnabled: true,
		PushEnabled:  true,
		SoundEnabled: true,
	}
}
