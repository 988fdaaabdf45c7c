package models

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Role identifies the author class of a message, not its display name.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Reserved display handles that never belong to a persona.
const (
	UsernameHuman     = "You"
	UsernameModerator = "AutoModerator"
)

// ModeratorKarma is the fixed karma display value for system-authored
// messages.
const ModeratorKarma = 1_000_000

// Message is one node in a thread's comment tree. Roots hold direct
// replies; a direct reply may hold nested replies, which is the maximum
// depth. Content is mutated incrementally while a streamed response is
// arriving and is immutable afterwards.
type Message struct {
	ID          string     `json:"id"`
	Role        Role       `json:"role"`
	Username    string     `json:"username"`
	Content     string     `json:"content"`
	Karma       int        `json:"karma"`
	Timestamp   time.Time  `json:"timestamp"`
	Upvotes     int        `json:"upvotes"`
	Downvotes   int        `json:"downvotes"`
	Replies     []*Message `json:"replies"`
	IsReplyOpen bool       `json:"is_reply_open"`
}

// msgSeq disambiguates message IDs minted within the same nanosecond.
var msgSeq uint64

// NewMessageID returns a sortable time-based identifier. Lexicographic
// order of IDs matches creation order.
func NewMessageID() string {
	s := atomic.AddUint64(&msgSeq, 1)
	return fmt.Sprintf("%020d-%06d", time.Now().UTC().UnixNano(), s%1_000_000)
}

// NewUserMessage creates a comment authored by the human user.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        NewMessageID(),
		Role:      RoleUser,
		Username:  UsernameHuman,
		Content:   content,
		Karma:     1,
		Timestamp: time.Now().UTC(),
		Replies:   []*Message{},
	}
}

// NewAssistantMessage creates a persona-authored comment. Karma is fixed
// at creation from the authoring persona.
func NewAssistantMessage(username string, karma int, content string) *Message {
	return &Message{
		ID:        NewMessageID(),
		Role:      RoleAssistant,
		Username:  username,
		Content:   content,
		Karma:     karma,
		Timestamp: time.Now().UTC(),
		Replies:   []*Message{},
	}
}

// NewModeratorMessage creates a system-authored message (welcome or
// apology text).
func NewModeratorMessage(content string) *Message {
	m := NewAssistantMessage(UsernameModerator, ModeratorKarma, content)
	return m
}

// MarshalJSON adds the rendered comment age alongside the raw timestamp.
func (m *Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return json.Marshal(struct {
		*alias
		TimeAgo string `json:"time_ago"`
	}{(*alias)(m), RelativeTime(m.Timestamp)})
}

// CountNodes returns the total number of messages in the subtree rooted
// at m, including m itself.
func (m *Message) CountNodes() int {
	n := 1
	for _, r := range m.Replies {
		n += r.CountNodes()
	}
	return n
}
