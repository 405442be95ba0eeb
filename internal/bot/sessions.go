package bot

import (
	"strings"
	"sync"

	"github.com/glebk/status-board/internal/domain"
)

// SessionStore keeps the logged-in session of each chat in memory
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]domain.Session)}
}

func (s *SessionStore) Get(chatID int64) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[chatID]
	return session, ok
}

func (s *SessionStore) Set(chatID int64, session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = session
}

// Delete logs the chat out and reports whether it was logged in
func (s *SessionStore) Delete(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[chatID]
	delete(s.sessions, chatID)
	return ok
}

// parseLogin splits "/login" arguments into a session. The password is the
// last word so display names may contain spaces.
func parseLogin(args string) (domain.Session, bool) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return domain.Session{}, false
	}
	name := strings.Join(fields[:len(fields)-1], " ")
	return domain.NewSession(name, fields[len(fields)-1]), true
}
