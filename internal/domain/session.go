package domain

import (
	"encoding/json"
	"time"
)

// Session is one chat-driven design conversation. DesignState holds the
// raw stored design document; readers migrate it before use.
type Session struct {
	ID          string
	Locale      string
	DesignState json.RawMessage
	ProductID   *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MessageRole enumerates chat participants.
type MessageRole string

const (
	RoleUser      MessageRole = "USER"
	RoleAssistant MessageRole = "TAILOR"
)

// Message is a chat entry. Pipeline notices are assistant messages.
type Message struct {
	ID         string
	SessionID  string
	Role       MessageRole
	Content    string
	ArtifactID string
	JobID      string
	CreatedAt  time.Time
}
