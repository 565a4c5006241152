package history

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pensador-ai/website/backend/internal/model/chat"
)

func testSanitizer() *Sanitizer {
	return NewSanitizer(Limits{
		MaxMessages:     4,
		MaxMessageChars: 20,
		MaxPayloadBytes: 600,
	})
}

func TestCleanContentStripsAndTrims(t *testing.T) {
	s := testSanitizer()

	got := s.CleanContent("  hi\x00 there  ")
	if got != "hi there" {
		t.Fatalf("expected %q, got %q", "hi there", got)
	}
}

func TestCleanContentTruncates(t *testing.T) {
	s := testSanitizer()

	got := s.CleanContent(strings.Repeat("a", 50))
	if len(got) != 20 {
		t.Fatalf("expected 20 characters, got %d", len(got))
	}
}

func TestCleanContentEmptyInputs(t *testing.T) {
	s := testSanitizer()

	for _, raw := range []string{"", "   ", "\x00\x00", " \t\n "} {
		if got := s.CleanContent(raw); got != "" {
			t.Fatalf("expected empty result for %q, got %q", raw, got)
		}
	}
}

func TestSanitizeDropsInvalidEntries(t *testing.T) {
	s := testSanitizer()

	msgs := []chat.Message{
		{Role: "system", Content: "not a widget role"},
		{Role: chat.RoleUser, Content: "   "},
		{Role: chat.RoleUser, Content: "keep me"},
	}

	got := s.Sanitize(msgs)
	if len(got) != 1 {
		t.Fatalf("expected 1 surviving message, got %d", len(got))
	}
	if got[0].Content != "keep me" {
		t.Fatalf("unexpected content: %q", got[0].Content)
	}
}

func TestSanitizeFillsIDAndTimestamp(t *testing.T) {
	s := testSanitizer()

	got := s.Sanitize([]chat.Message{{Role: chat.RoleAssistant, Content: "hello"}})
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].ID == "" {
		t.Fatal("expected a generated id")
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("expected a generated timestamp")
	}
}

func TestSanitizeKeepsExistingIDAndTimestamp(t *testing.T) {
	s := testSanitizer()
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got := s.Sanitize([]chat.Message{{ID: "msg-1", Role: chat.RoleUser, Content: "hi", CreatedAt: createdAt}})
	if got[0].ID != "msg-1" {
		t.Fatalf("expected id to survive, got %q", got[0].ID)
	}
	if !got[0].CreatedAt.Equal(createdAt) {
		t.Fatalf("expected timestamp to survive, got %v", got[0].CreatedAt)
	}
}

func TestSanitizeKeepsMostRecent(t *testing.T) {
	s := testSanitizer()

	msgs := make([]chat.Message, 0, 6)
	for _, content := range []string{"one", "two", "three", "four", "five", "six"} {
		msgs = append(msgs, chat.Message{Role: chat.RoleUser, Content: content})
	}

	got := s.Sanitize(msgs)
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	if got[0].Content != "three" || got[3].Content != "six" {
		t.Fatalf("expected oldest trimmed first, got %q..%q", got[0].Content, got[3].Content)
	}
}

func TestBuildPayloadRespectsByteCap(t *testing.T) {
	s := testSanitizer()

	msgs := make([]chat.Message, 0, 8)
	for i := 0; i < 8; i++ {
		msgs = append(msgs, chat.Message{Role: chat.RoleUser, Content: strings.Repeat("x", 20)})
	}

	payload := s.BuildPayload(msgs)

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if len(data) > 600 {
		t.Fatalf("payload exceeds byte cap: %d bytes", len(data))
	}
	if len(payload.Messages) > 4 {
		t.Fatalf("payload exceeds count cap: %d messages", len(payload.Messages))
	}
	if payload.Version != chat.PayloadVersion {
		t.Fatalf("unexpected payload version %d", payload.Version)
	}
}

func TestBuildPayloadDropsOldestFirst(t *testing.T) {
	s := NewSanitizer(Limits{MaxMessages: 10, MaxMessageChars: 50, MaxPayloadBytes: 400})

	msgs := []chat.Message{
		{Role: chat.RoleUser, Content: "oldest " + strings.Repeat("a", 40)},
		{Role: chat.RoleAssistant, Content: "middle " + strings.Repeat("b", 40)},
		{Role: chat.RoleUser, Content: "newest " + strings.Repeat("c", 40)},
	}

	payload := s.BuildPayload(msgs)
	if len(payload.Messages) == 0 {
		t.Fatal("expected at least the newest message to survive")
	}
	last := payload.Messages[len(payload.Messages)-1]
	if !strings.HasPrefix(last.Content, "newest") {
		t.Fatalf("expected newest message to survive, got %q", last.Content)
	}
}

func TestNewMessageCleansContent(t *testing.T) {
	s := testSanitizer()

	msg := s.NewMessage(chat.RoleAssistant, "  reply\x00  ")
	if msg.Content != "reply" {
		t.Fatalf("expected cleaned content, got %q", msg.Content)
	}
	if msg.Role != chat.RoleAssistant {
		t.Fatalf("unexpected role %q", msg.Role)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Fatal("expected generated id and timestamp")
	}
}
