// Package history normalizes and bounds widget conversation content before it
// is stored or forwarded to the model.
package history

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pensador-ai/website/backend/internal/model/chat"
)

// Limits bounds a single message and a whole history.
type Limits struct {
	MaxMessages     int
	MaxMessageChars int
	MaxPayloadBytes int
}

// Sanitizer applies Limits to messages and histories. All methods are total:
// malformed input degrades to empty values, never to an error.
type Sanitizer struct {
	limits Limits
	now    func() time.Time
}

// NewSanitizer creates a Sanitizer for the given limits.
func NewSanitizer(limits Limits) *Sanitizer {
	return &Sanitizer{limits: limits, now: time.Now}
}

// CleanContent strips NUL bytes, trims surrounding whitespace and truncates to
// the per-message character cap. An empty result means "no usable content".
func (s *Sanitizer) CleanContent(raw string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, "\x00", ""))
	if runes := []rune(cleaned); len(runes) > s.limits.MaxMessageChars {
		cleaned = string(runes[:s.limits.MaxMessageChars])
	}
	return cleaned
}

// Sanitize returns a bounded copy of msgs keeping only entries with a valid
// role and non-empty cleaned content. Invalid entries are dropped silently so
// a single tampered message cannot poison the whole history. Missing ids and
// timestamps are filled in.
func (s *Sanitizer) Sanitize(msgs []chat.Message) []chat.Message {
	sanitized := make([]chat.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.Role.Valid() {
			continue
		}
		content := s.CleanContent(msg.Content)
		if content == "" {
			continue
		}

		id := strings.TrimSpace(msg.ID)
		if id == "" {
			id = newID()
		}
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.now().UTC()
		}

		sanitized = append(sanitized, chat.Message{
			ID:        id,
			Role:      msg.Role,
			Content:   content,
			CreatedAt: createdAt,
		})
	}

	return s.trimToLimit(sanitized)
}

// NewMessage builds a message with a fresh id and timestamp. Content is
// cleaned with the same rules as incoming history.
func (s *Sanitizer) NewMessage(role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        newID(),
		Role:      role,
		Content:   s.CleanContent(content),
		CreatedAt: s.now().UTC(),
	}
}

// BuildPayload sanitizes and trims msgs by count, then keeps dropping the
// oldest message until the serialized payload fits the byte cap. The returned
// payload always satisfies both caps, losing oldest context first.
func (s *Sanitizer) BuildPayload(msgs []chat.Message) chat.HistoryPayload {
	current := s.Sanitize(msgs)
	payload := chat.HistoryPayload{Version: chat.PayloadVersion, Messages: current}

	for len(current) > 0 && serializedSize(payload) > s.limits.MaxPayloadBytes {
		current = current[1:]
		payload = chat.HistoryPayload{Version: chat.PayloadVersion, Messages: current}
	}

	return payload
}

func (s *Sanitizer) trimToLimit(msgs []chat.Message) []chat.Message {
	if len(msgs) <= s.limits.MaxMessages {
		return msgs
	}
	return msgs[len(msgs)-s.limits.MaxMessages:]
}

func serializedSize(payload chat.HistoryPayload) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(data)
}

// newID prefers a crypto-sourced UUID and falls back to a time+random string
// so message creation can never fail.
func newID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%d-%08x", time.Now().UnixNano(), rand.Uint32())
	}
	return id.String()
}
