package session

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/model"
)

// MemoryStore is the single-instance Store. Callers always receive copies.
type MemoryStore struct {
	clock    clockwork.Clock
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clock,
		sessions: make(map[string]*model.Session),
	}
}

func (s *MemoryStore) Create(_ context.Context, id string, profile model.Profile, token model.TokenData) (*model.Session, error) {
	now := s.clock.Now()
	sess := &model.Session{
		ID:           id,
		Profile:      profile,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		CreatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok && existing.IsValid(now) {
		return nil, apperrors.DuplicateSession(id)
	}
	s.sessions[id] = sess

	out := *sess
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	out := *sess
	return &out, nil
}

func (s *MemoryStore) UpdateToken(_ context.Context, id string, token model.TokenData) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("Session")
	}

	updated := *sess
	updated.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		updated.RefreshToken = token.RefreshToken
	}
	updated.ExpiresAt = token.ExpiresAt
	s.sessions[id] = &updated

	out := updated
	return &out, nil
}

func (s *MemoryStore) IsValid(_ context.Context, id string) bool {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	return ok && sess.IsValid(now)
}

func (s *MemoryStore) Destroy(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *MemoryStore) SweepExpired(_ context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) ActiveSessions(_ context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, sess := range s.sessions {
		if sess.IsValid(now) {
			active++
		}
	}
	return active, nil
}
