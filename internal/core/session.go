package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const sessionHistory = 20

// Session is one operator's sequence of analyses. Starting an analysis
// supersedes the previous one: its pending candidate is cancelled and a
// result arriving afterwards is discarded.
type Session struct {
	id       string
	analyzer *Analyzer

	mu      sync.Mutex
	current *Analysis
	recent  []*Analysis
	closed  bool

	// issued counts Analyze calls; installed is the generation of current.
	issued    uint64
	installed uint64
}

// NewSession creates a session with a fresh id.
func NewSession(analyzer *Analyzer) (*Session, error) {
	id, err := schema.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	return newSessionWithID(id, analyzer), nil
}

func newSessionWithID(id string, analyzer *Analyzer) *Session {
	return &Session{id: id, analyzer: analyzer}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Analyzer returns the analyzer the session runs on.
func (s *Session) Analyzer() *Analyzer {
	return s.analyzer
}

// Analyze starts an analysis and makes it current. The start, which may
// include an automotive check for manual input, runs outside the session
// lock. When a newer call has already installed its analysis, the
// returned analysis is superseded by that one.
func (s *Session) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s is closed", s.id)
	}
	s.issued++
	gen := s.issued
	s.mu.Unlock()

	a, err := s.analyzer.start(ctx, req, s.id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		a.Cancel()
		return nil, fmt.Errorf("session %s is closed", s.id)
	}

	if gen < s.installed {
		a.supersede(s.current.ID())
	} else {
		if s.current != nil {
			s.current.supersede(a.ID())
		}
		s.current = a
		s.installed = gen
	}

	s.recent = append(s.recent, a)
	if len(s.recent) > sessionHistory {
		s.recent = s.recent[len(s.recent)-sessionHistory:]
	}
	return a, nil
}

// Current returns the most recent analysis.
func (s *Session) Current() (*Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

// Find returns a recent analysis by id.
func (s *Session) Find(id string) (*Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.recent {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// Close cancels the current analysis and rejects new ones.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.current != nil {
		s.current.Cancel()
	}
}

// SessionStore keeps sessions by id, evicting the oldest beyond a limit.
type SessionStore struct {
	analyzer *Analyzer
	max      int

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
}

// NewSessionStore creates a store holding at most max sessions.
func NewSessionStore(analyzer *Analyzer, max int) *SessionStore {
	if max <= 0 {
		max = 100
	}
	return &SessionStore{
		analyzer: analyzer,
		max:      max,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session with the given id.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating a new one when id is
// empty or unknown. The returned session's id may differ from id.
func (st *SessionStore) GetOrCreate(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok && id != "" {
		return s, nil
	}
	s, err := NewSession(st.analyzer)
	if err != nil {
		return nil, err
	}
	st.sessions[s.ID()] = s
	st.order = append(st.order, s.ID())
	for len(st.order) > st.max {
		oldest := st.order[0]
		st.order = st.order[1:]
		if old, ok := st.sessions[oldest]; ok {
			old.Close()
			delete(st.sessions, oldest)
		}
	}
	return s, nil
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
