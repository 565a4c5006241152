// Package session keeps per-visitor conversation history in memory with a
// sliding TTL. State is process-local and intentionally non-durable.
package session

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pensador-ai/website/backend/internal/model/chat"
	"github.com/pensador-ai/website/backend/internal/service/history"
)

// idPattern is the shape a cookie value must have before it is trusted as a
// session identifier.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// ValidID reports whether value can be trusted as an existing session id.
func ValidID(value string) bool {
	return idPattern.MatchString(value)
}

// NewID mints a session identifier. Crypto-sourced when possible, with a
// time+random fallback; either form satisfies ValidID.
func NewID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%d-%08x%08x", time.Now().UnixMilli(), rand.Uint32(), rand.Uint32())
	}
	return id.String()
}

type record struct {
	history   []chat.Message
	updatedAt time.Time
}

// Store maps session ids to sanitized histories. Expiry is an amortized
// sweep, at most once per sweep interval, so an abandoned record may outlive
// its TTL briefly until the next sweep tick.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*record
	sanitizer *history.Sanitizer
	ttl       time.Duration
	sweepMin  time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewStore creates a Store whose records expire ttl after their last use.
func NewStore(sanitizer *history.Sanitizer, ttl, sweepInterval time.Duration) *Store {
	return &Store{
		sessions:  make(map[string]*record),
		sanitizer: sanitizer,
		ttl:       ttl,
		sweepMin:  sweepInterval,
		now:       time.Now,
	}
}

// History returns a copy of the stored history, or an empty slice for an
// unknown id. Reading refreshes the record's TTL: active sessions never
// expire.
func (s *Store) History(sessionID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	rec, ok := s.sessions[sessionID]
	if !ok {
		return []chat.Message{}
	}

	rec.updatedAt = now
	out := make([]chat.Message, len(rec.history))
	copy(out, rec.history)
	return out
}

// SaveHistory re-sanitizes msgs and stores them under sessionID, returning
// the stored value. Sanitizing here guards against callers handing over
// unsanitized data.
func (s *Store) SaveHistory(sessionID string, msgs []chat.Message) []chat.Message {
	sanitized := s.sanitizer.Sanitize(msgs)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	s.sessions[sessionID] = &record{history: sanitized, updatedAt: now}

	out := make([]chat.Message, len(sanitized))
	copy(out, sanitized)
	return out
}

// Clear removes the session entirely. Clearing an unknown id is a no-op.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepMin {
		return
	}
	for id, rec := range s.sessions {
		if now.Sub(rec.updatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
	s.lastSweep = now
}
