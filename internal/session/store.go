// Package session keeps the in-memory per-user conversation state.
package session

import (
	"sync"
	"time"

	"github.com/soyeahso/nerdson/internal/domain"
)

// entry pairs a session with the mutex that serializes event handling for
// its user. Session fields themselves are guarded by Store.mu.
type entry struct {
	turn sync.Mutex
	sess domain.Session
}

// Store is an in-memory map of user ID to session. All methods are safe for
// concurrent use. Sessions are created lazily and never removed.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) entry(userID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		return e
	}
	e = &entry{sess: domain.Session{UserID: userID}}
	s.entries[userID] = e
	return e
}

// Lock enters the critical section for userID and returns its release
// function. Callers hold it for the whole handling of one event; users never
// contend with each other.
func (s *Store) Lock(userID string) (unlock func()) {
	e := s.entry(userID)
	e.turn.Lock()
	return e.turn.Unlock
}

// GetOrCreate returns a copy of the user's session, creating an empty one
// when absent.
func (s *Store) GetOrCreate(userID string) domain.Session {
	e := s.entry(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(e.sess)
}

// Snapshot returns a copy of the session and whether it exists, without
// creating it.
func (s *Store) Snapshot(userID string) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID]
	if !ok {
		return domain.Session{}, false
	}
	return clone(e.sess), true
}

// Touch records now as the user's last activity and returns the previous
// value; ok is false on first contact. lastSeenAt never moves backwards.
func (s *Store) Touch(userID string, now time.Time) (prev time.Time, ok bool) {
	e := s.entry(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = e.sess.LastSeenAt
	ok = !prev.IsZero()
	if !ok || now.After(prev) {
		e.sess.LastSeenAt = now
	}
	return prev, ok
}

// ResetWithSystemPrompt replaces the history with a single system turn and
// clears the awaiting-human flag.
func (s *Store) ResetWithSystemPrompt(userID, content string) {
	e := s.entry(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.sess.History = []domain.Turn{{Role: domain.RoleSystem, Content: content}}
	e.sess.AwaitingHuman = false
}

// Append adds a turn to the end of the history. Role order is not checked.
func (s *Store) Append(userID string, role domain.Role, content string) {
	e := s.entry(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.sess.History = append(e.sess.History, domain.Turn{Role: role, Content: content})
}

// History returns a copy of the user's turns, oldest first.
func (s *Store) History(userID string) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID]
	if !ok {
		return nil
	}
	return append([]domain.Turn(nil), e.sess.History...)
}

func (s *Store) MarkAwaitingHuman(userID string) {
	s.setAwaiting(userID, true)
}

func (s *Store) ClearAwaitingHuman(userID string) {
	s.setAwaiting(userID, false)
}

func (s *Store) IsAwaitingHuman(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID]
	return ok && e.sess.AwaitingHuman
}

// Len returns the number of known users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) setAwaiting(userID string, v bool) {
	e := s.entry(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.sess.AwaitingHuman = v
}

func clone(sess domain.Session) domain.Session {
	sess.History = append([]domain.Turn(nil), sess.History...)
	return sess
}
