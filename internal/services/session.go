package services

import (
	"sync"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
)

// SessionStore keeps per-user conversation state, keyed by the chat
// platform user identifier. Implementations create state on first
// access and drop it entirely on Clear.
type SessionStore interface {
	Get(userID string) models.Session
	Update(userID string, upd models.SessionUpdate)
	AppendHistory(userID, role, content string)
	Clear(userID string)
	Close()
}

// MemorySessionStore is the in-process SessionStore. State does not
// survive a restart; that is deliberate.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*models.Session)}
}

// Get returns a snapshot of the user's session, creating a fresh one
// if none exists. Mutations go through Update/AppendHistory/Clear.
func (s *MemorySessionStore) Get(userID string) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreate(userID)
}

// Update applies a shallow merge: only non-nil fields of upd replace
// the stored values, last write wins per field.
func (s *MemorySessionStore) Update(userID string, upd models.SessionUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(userID)
	if upd.Stage != nil {
		sess.Stage = *upd.Stage
	}
	if upd.SelectedProduct != nil {
		sess.SelectedProduct = upd.SelectedProduct
	}
	if upd.RecommendedProduct != nil {
		sess.RecommendedProduct = upd.RecommendedProduct
	}
	if upd.ProductOptions != nil {
		sess.ProductOptions = upd.ProductOptions
	}
}

// AppendHistory pushes one entry and evicts the oldest beyond the cap.
func (s *MemorySessionStore) AppendHistory(userID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(userID)
	sess.History = append(sess.History, models.HistoryEntry{Role: role, Content: content})
	if len(sess.History) > models.MaxHistoryEntries {
		sess.History = sess.History[len(sess.History)-models.MaxHistoryEntries:]
	}
}

// Clear removes the session entirely; the next Get starts fresh.
func (s *MemorySessionStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *MemorySessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*models.Session)
}

func (s *MemorySessionStore) getOrCreate(userID string) *models.Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &models.Session{}
		s.sessions[userID] = sess
	}
	return sess
}
