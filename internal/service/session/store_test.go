package session

import (
	"testing"
	"time"

	"github.com/pensador-ai/website/backend/internal/model/chat"
	"github.com/pensador-ai/website/backend/internal/service/history"
)

func testStore(ttl, sweepInterval time.Duration) *Store {
	sanitizer := history.NewSanitizer(history.Limits{
		MaxMessages:     10,
		MaxMessageChars: 100,
		MaxPayloadBytes: 10000,
	})
	return NewStore(sanitizer, ttl, sweepInterval)
}

func TestNewIDIsValid(t *testing.T) {
	id := NewID()
	if !ValidID(id) {
		t.Fatalf("generated id %q does not satisfy the session pattern", id)
	}
}

func TestValidIDRejectsMalformedValues(t *testing.T) {
	for _, value := range []string{"", "short", "has spaces in it yes", "bad!chars#here-aaaaaa"} {
		if ValidID(value) {
			t.Fatalf("expected %q to be rejected", value)
		}
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	store := testStore(time.Hour, time.Minute)

	got := store.History("missing-session-id")
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(got))
	}
	if store.Len() != 0 {
		t.Fatalf("read must not create records, have %d", store.Len())
	}
}

func TestSaveThenRead(t *testing.T) {
	store := testStore(time.Hour, time.Minute)
	id := NewID()

	stored := store.SaveHistory(id, []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: "bogus", Content: "dropped"},
	})
	if len(stored) != 1 {
		t.Fatalf("expected sanitized history of 1, got %d", len(stored))
	}

	got := store.History(id)
	if len(got) != 1 || got[0].Content != "hello" {
		t.Fatalf("unexpected history after read: %+v", got)
	}
}

func TestReadReturnsCopy(t *testing.T) {
	store := testStore(time.Hour, time.Minute)
	id := NewID()
	store.SaveHistory(id, []chat.Message{{Role: chat.RoleUser, Content: "hello"}})

	first := store.History(id)
	first[0].Content = "mutated"

	second := store.History(id)
	if second[0].Content != "hello" {
		t.Fatalf("stored history was mutated through a read: %q", second[0].Content)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store := testStore(time.Hour, time.Minute)
	id := NewID()
	store.SaveHistory(id, []chat.Message{{Role: chat.RoleUser, Content: "hello"}})

	store.Clear(id)
	store.Clear(id)

	if got := store.History(id); len(got) != 0 {
		t.Fatalf("expected empty history after clear, got %d messages", len(got))
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	store := testStore(time.Hour, 5*time.Minute)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	id := NewID()
	store.SaveHistory(id, []chat.Message{{Role: chat.RoleUser, Content: "hello"}})

	// Past the TTL and past the sweep interval: the next call sweeps.
	now = now.Add(2 * time.Hour)
	if got := store.History("another-session-id-xx"); len(got) != 0 {
		t.Fatalf("expected empty history, got %d", len(got))
	}

	if store.Len() != 0 {
		t.Fatalf("expected expired session to be swept, have %d records", store.Len())
	}
}

func TestSweepIsAmortized(t *testing.T) {
	store := testStore(time.Minute, 5*time.Minute)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	id := NewID()
	store.SaveHistory(id, []chat.Message{{Role: chat.RoleUser, Content: "hello"}})

	// TTL elapsed but the sweep interval has not: the record may linger.
	now = now.Add(2 * time.Minute)
	store.History("another-session-id-xx")

	if store.Len() != 1 {
		t.Fatalf("expected record to survive until the next sweep tick, have %d", store.Len())
	}

	// Once the sweep interval passes the record goes.
	now = now.Add(5 * time.Minute)
	store.History("another-session-id-xx")

	if store.Len() != 0 {
		t.Fatalf("expected record to be swept, have %d", store.Len())
	}
}

func TestActiveSessionSlidesTTL(t *testing.T) {
	store := testStore(time.Hour, time.Nanosecond)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	id := NewID()
	store.SaveHistory(id, []chat.Message{{Role: chat.RoleUser, Content: "hello"}})

	// Touch the session every 30 minutes; it must never expire.
	for i := 0; i < 5; i++ {
		now = now.Add(30 * time.Minute)
		if got := store.History(id); len(got) != 1 {
			t.Fatalf("active session expired after %d touches", i+1)
		}
	}
}
