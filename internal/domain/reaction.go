package domain

import "time"

// Emojis is the closed reaction set.
var Emojis = []string{"👍", "❤️", "😂", "👎", "😮", "🎉", "😢", "😡"}

// ValidEmoji reports whether e belongs to the reaction set.
func ValidEmoji(e string) bool {
	for _, candidate := range Emojis {
		if candidate == e {
			return true
		}
	}
	return false
}

// Reaction is one (message, user, emoji) triple.
type Reaction struct {
	MessageID int64
	UserID    string
	Emoji     string
	CreatedAt time.Time
}
