package domain

import "time"

const (
	// TypingWindow is how long a typing update counts as current.
	TypingWindow = 3 * time.Second
	// OnlineWindow is how long after the last activity a user counts as online.
	OnlineWindow = 10 * time.Minute
	// ActivityRewriteInterval suppresses presence writes for recently active users.
	ActivityRewriteInterval = time.Minute
)

// Activity tracks presence and typing state for one user.
type Activity struct {
	UserID           string
	LastActivity     time.Time
	Online           bool
	Typing           bool
	TypingRoomID     *string
	LastTypingUpdate time.Time
}

// IsOnline treats last activity as authoritative over the stored flag.
func (a *Activity) IsOnline(now time.Time) bool {
	return a.Online && !a.LastActivity.Before(now.Add(-OnlineWindow))
}

// IsTypingIn reports whether the user is currently typing in roomID.
func (a *Activity) IsTypingIn(roomID string, now time.Time) bool {
	return a.Typing && a.TypingRoomID != nil && *a.TypingRoomID == roomID &&
		!a.LastTypingUpdate.Before(now.Add(-TypingWindow))
}
