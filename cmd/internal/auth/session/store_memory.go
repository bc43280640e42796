package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. It is intended for
// tests and single-node development runs.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[string]Credential
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

func (s *MemoryStore) live(userID string, now time.Time) (Credential, bool) {
	c, ok := s.creds[userID]
	if !ok || !c.ExpiresAt.After(now) {
		return Credential{}, false
	}
	return c, true
}

// Get returns the stored credential for userID.
func (s *MemoryStore) Get(_ context.Context, userID string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(userID, time.Now())
	if !ok {
		return Credential{}, ErrNoCredential
	}
	return c, nil
}

// Set unconditionally overwrites the credential for userID.
func (s *MemoryStore) Set(_ context.Context, _ time.Time, userID, hash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[userID] = Credential{Hash: hash, ExpiresAt: expiresAt}
	return nil
}

// Swap replaces the credential only if the stored hash equals oldHash.
func (s *MemoryStore) Swap(_ context.Context, now time.Time, userID, oldHash, newHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(userID, now)
	if !ok {
		return ErrNoCredential
	}
	if c.Hash != oldHash {
		return ErrCredentialMismatch
	}

	s.creds[userID] = Credential{Hash: newHash, ExpiresAt: expiresAt}
	return nil
}

// Clear removes the credential for userID.
func (s *MemoryStore) Clear(_ context.Context, _ time.Time, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds, userID)
	return nil
}
