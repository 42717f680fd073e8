package storage

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chilly266futon/orderComposer/internal/balance"
	"github.com/chilly266futon/orderComposer/internal/composer"
)

// Session is one open trading panel.
type Session struct {
	ID        string
	UserID    string
	Composer  *composer.Composer
	Balances  *balance.Holder
	CreatedAt time.Time

	lastActive atomic.Int64
}

// Touch records user activity on the panel.
func (s *Session) Touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// LastActive falls back to CreatedAt for a session that was never touched.
func (s *Session) LastActive() time.Time {
	if n := s.lastActive.Load(); n != 0 {
		return time.Unix(0, n)
	}
	return s.CreatedAt
}

type SessionStorage struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewSessionStorage() *SessionStorage {
	return &SessionStorage{
		sessions: make(map[string]*Session),
	}
}

func (s *SessionStorage) GetByID(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[id]
	return session, exists
}

func (s *SessionStorage) Add(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
}

// Delete removes the session and returns it, so the caller can close it.
func (s *SessionStorage) Delete(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if exists {
		delete(s.sessions, id)
	}
	return session, exists
}

func (s *SessionStorage) GetByUserID(userID string) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0)
	for _, session := range s.sessions {
		if session.UserID == userID {
			result = append(result, session)
		}
	}
	return result
}

// IdleSince returns sessions with no activity after the cutoff.
func (s *SessionStorage) IdleSince(cutoff time.Time) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0)
	for _, session := range s.sessions {
		if session.LastActive().Before(cutoff) {
			result = append(result, session)
		}
	}
	return result
}

func (s *SessionStorage) All() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		result = append(result, session)
	}
	return result
}

func (s *SessionStorage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
