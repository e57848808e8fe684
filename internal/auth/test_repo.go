package auth

import (
	"context"
	"sync"
	"time"
)

// TestSessionRepo is an in-memory SessionRepo for unit tests.
type TestSessionRepo struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	nextID   int64

	// when set, returned by every call (to exercise storage failure paths)
	Err error
}

var _ SessionRepo = (*TestSessionRepo)(nil)

func NewTestSessionRepo() *TestSessionRepo {
	return &TestSessionRepo{
		sessions: make(map[int64]*Session),
		nextID:   1,
	}
}

func (r *TestSessionRepo) Create(_ context.Context, session *Session) (*Session, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *session
	stored.ID = r.nextID
	r.nextID++
	r.sessions[stored.ID] = &stored
	result := stored
	return &result, nil
}

func (r *TestSessionRepo) GetByHash(_ context.Context, credentialHash string) (*Session, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.CredentialHash == credentialHash {
			result := *s
			return &result, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (r *TestSessionRepo) UpdateSeen(_ context.Context, id int64, lastSeenAt, expiresAt time.Time) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastSeenAt = lastSeenAt
	s.ExpiresAt = expiresAt
	return nil
}

func (r *TestSessionRepo) DeleteByHash(_ context.Context, credentialHash string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.CredentialHash == credentialHash {
			delete(r.sessions, id)
			return nil
		}
	}
	return ErrSessionNotFound
}

func (r *TestSessionRepo) DeleteByID(_ context.Context, id int64) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *TestSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored sessions (storage inspection in tests).
func (r *TestSessionRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
