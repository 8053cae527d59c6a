package bot

import "sync"

// Conversation states of the lead funnel.
const (
	StateIdle    = "IDLE"
	StateBrief   = "LEAD_BRIEF"
	StateContact = "LEAD_CONTACT"
)

// Lead sources originating in the bot.
const (
	SourceConsult = "consult"
	SourceOrder   = "order"
)

// Session is the per-user conversation state. The zero value is an idle
// session.
type Session struct {
	State   string // Current funnel state, StateIdle when empty.
	Source  string // consult or order once the funnel starts.
	Package string // Selected or last viewed package name.
	Brief   string // Collected task description.
}

// SessionStore keeps sessions in memory keyed by Telegram user id.
// Sessions are intentionally not persisted: a restart simply drops
// half-finished funnels back to the menu.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewSessionStore constructs an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]Session)}
}

// Get returns the session for a user, idle when never seen.
func (s *SessionStore) Get(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[userID]
	if sess.State == "" {
		sess.State = StateIdle
	}
	return sess
}

// Set stores the session for a user.
func (s *SessionStore) Set(userID int64, sess Session) {
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
}

// Reset drops the session back to idle.
func (s *SessionStore) Reset(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}
