package research

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for session-store operations.
var (
	ErrSessionExists   = errors.New("research session already active")
	ErrSessionNotFound = errors.New("no active research session")
)

// Session is one research run's isolated state. All fields besides the
// store bookkeeping are owned by the single goroutine driving the run:
// the index is single-writer, the term list is append-only, and the
// outline is replaced wholesale by each assessment.
type Session struct {
	Key           string
	Query         string
	Iteration     int // 1-based, bounded by MaxIterations
	MaxIterations int
	SearchTerms   []string
	Processed     map[string]VideoMetadata
	Summaries     []VideoSummary
	Outline       string
	Index         *VectorIndex
}

// Seen reports whether the video was already processed this session.
func (s *Session) Seen(videoID string) bool {
	_, ok := s.Processed[videoID]
	return ok
}

// Record marks a video as processed. Recording the same id twice is a
// no-op so rediscovery by a later search term never re-indexes.
func (s *Session) Record(meta VideoMetadata) {
	if _, ok := s.Processed[meta.ID]; ok {
		return
	}
	s.Processed[meta.ID] = meta
}

// Store owns the active sessions, keyed by session key. At most one
// session may exist per key; creating a duplicate is an error with no
// side effects. The store is a handle passed to whoever runs research,
// never ambient state.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session under key.
func (st *Store) Create(key, query string, maxIterations int, index *VectorIndex) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, key)
	}
	s := &Session{
		Key:           key,
		Query:         query,
		Iteration:     1,
		MaxIterations: maxIterations,
		Processed:     make(map[string]VideoMetadata),
		Index:         index,
	}
	st.sessions[key] = s
	return s, nil
}

// Get returns the active session for key.
func (st *Store) Get(key string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	return s, nil
}

// Delete tears down the session for key. Deleting an absent key is a
// no-op, so the cleanup path is safe to run from any failure point.
func (st *Store) Delete(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, key)
}

// Active returns the number of live sessions.
func (st *Store) Active() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
