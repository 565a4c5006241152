package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one the widget may submit.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single turn of a widget conversation. Messages are immutable
// once created; histories replace them rather than mutate them.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PayloadVersion marks the serialized history schema.
const PayloadVersion = 1

// HistoryPayload is the versioned envelope a bounded history serializes into.
type HistoryPayload struct {
	Version  int       `json:"v"`
	Messages []Message `json:"messages"`
}
