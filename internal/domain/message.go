package domain

import (
	"regexp"
	"time"
)

// MaxBodyLength bounds message bodies, counted in characters.
const MaxBodyLength = 1000

// Attachment is an opaque file carried by a message. Listings may omit Data and report
// the stored length in SizeBytes.
type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
	SizeBytes   int64
}

// Size returns the attachment length in bytes.
func (a *Attachment) Size() int64 {
	if a == nil {
		return 0
	}
	if a.Data != nil {
		return int64(len(a.Data))
	}
	return a.SizeBytes
}

// Message is an entry in a room's log.
type Message struct {
	ID         int64
	RoomID     string
	AuthorID   string
	Body       string
	CreatedAt  time.Time
	Attachment *Attachment
	ReplyToID  *int64
	Edited     bool
	EditedAt   *time.Time
	Mentions   []string
}

// HasAttachment reports whether a file is attached.
func (m *Message) HasAttachment() bool {
	return m.Attachment != nil && m.Attachment.FileName != ""
}

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// ExtractMentions returns the distinct usernames referenced as @name, in first-seen order.
func ExtractMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// ReadStatus records the first time a user observed a message.
type ReadStatus struct {
	MessageID int64
	UserID    string
	ReadAt    time.Time
}
