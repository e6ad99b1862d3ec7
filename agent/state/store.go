package state

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session already exists")
	ErrNilSession       = errors.New("session is nil")
	ErrInvalidSession   = errors.New("session id is empty")
)

const DefaultSessionTimeout = 30 * time.Minute

// Store is the persistence contract used by the orchestrator. An expired
// session behaves exactly like a missing one.
type Store interface {
	Create(ctx context.Context, sessionID string) (*ConsultationSession, error)
	Get(ctx context.Context, sessionID string) (*ConsultationSession, error)
	Update(ctx context.Context, sessionID string, mutate func(*ConsultationSession) error) (*ConsultationSession, error)
	Remove(ctx context.Context, sessionID string) error
}

// MemoryStore keeps sessions in process memory with idle-timeout expiry.
//
// Locking is two-level: a short-lived RWMutex guards the map, and each
// session carries its own mutex held for the duration of an Update, so a
// slow turn on one session never serializes unrelated consultations.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry

	timeout time.Duration
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	mu   sync.Mutex
	sess *ConsultationSession
}

// MemoryStoreOption customizes a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

func WithTimeout(timeout time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.timeout = timeout
	}
}

// WithClock injects the time source. Tests use it to age sessions.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		timeout:  DefaultSessionTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, sessionID string) (*ConsultationSession, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[sessionID]; ok {
		entry.mu.Lock()
		expired := entry.sess.Expired(now, s.timeout)
		entry.mu.Unlock()
		if !expired {
			return nil, ErrDuplicateSession
		}
		delete(s.sessions, sessionID)
	}

	sess := NewConsultationSession(sessionID, now)
	s.sessions[sessionID] = &memoryEntry{sess: sess}
	return sess.Clone(), nil
}

// Get returns a copy of the session. Lookup purges the entry when it has
// expired, so callers observe lazy expiry as NotFound.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*ConsultationSession, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.sess.Clone(), nil
}

// Update applies mutate under the session's own lock and refreshes the
// activity timestamp afterwards. A mutate error leaves the session exactly
// as it was.
func (s *MemoryStore) Update(ctx context.Context, sessionID string, mutate func(*ConsultationSession) error) (*ConsultationSession, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	draft := entry.sess.Clone()
	if err := mutate(draft); err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	draft.Touch(s.now())
	entry.sess = draft
	return draft.Clone(), nil
}

// Remove is idempotent: removing an absent session is not an error.
func (s *MemoryStore) Remove(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ActiveCount sweeps expired sessions and reports how many remain.
func (s *MemoryStore) ActiveCount() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		entry.mu.Lock()
		expired := entry.sess.Expired(now, s.timeout)
		entry.mu.Unlock()
		if expired {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions)
}

func (s *MemoryStore) lookup(sessionID string) (*memoryEntry, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	now := s.now()

	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	entry.mu.Lock()
	expired := entry.sess.Expired(now, s.timeout)
	entry.mu.Unlock()

	if expired {
		s.mu.Lock()
		// Re-check under the write lock; another caller may have replaced it.
		if cur, ok := s.sessions[sessionID]; ok && cur == entry {
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	return entry, nil
}
