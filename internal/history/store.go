// Package history keeps per-session conversation logs in memory.
// History is append-only except for an explicit clear, is trimmed to a
// character budget, and does not survive a restart.
package history

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"medichat-backend/internal/models"
)

// DefaultMaxChars approximates a ~1000 token context budget.
const DefaultMaxChars = 4000

type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]models.ChatMessage
	maxChars int

	// OnAppend, when set, is invoked after every append (outside the
	// lock). The websocket hub subscribes here.
	OnAppend func(sessionID uuid.UUID, msg models.ChatMessage)
}

func NewStore(maxChars int) *Store {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Store{
		sessions: make(map[uuid.UUID][]models.ChatMessage),
		maxChars: maxChars,
	}
}

// Append adds a message to the session's log and trims the oldest
// messages once the character budget is exceeded, never dropping below
// the two most recent messages.
func (s *Store) Append(sessionID uuid.UUID, msg models.ChatMessage) {
	s.mu.Lock()
	msgs := append(s.sessions[sessionID], msg)

	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	for total > s.maxChars && len(msgs) > 2 {
		total -= len(msgs[0].Content)
		msgs = msgs[1:]
		log.Printf("history: trimmed session %s, %d chars remain", sessionID, total)
	}

	s.sessions[sessionID] = msgs
	s.mu.Unlock()

	if s.OnAppend != nil {
		s.OnAppend(sessionID, msg)
	}
}

// Messages returns a copy of the session's log.
func (s *Store) Messages(sessionID uuid.UUID) []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of messages in the session's log.
func (s *Store) Len(sessionID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}

// Clear drops the session's log entirely.
func (s *Store) Clear(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
