package credential

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Credential
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{rows: make(map[string]*Credential), now: o.now}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, c *Credential) error {
	if err := validate(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[c.ID]; ok {
		return ErrDuplicate
	}
	s.rows[c.ID] = c.clone()
	return nil
}

// FindActive implements Store.
func (s *MemoryStore) FindActive(_ context.Context, kind jwt.Kind, principalID, credentialID string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[credentialID]
	if !ok || row.PrincipalID != principalID || row.Kind != kind || !row.ActiveAt(s.now()) {
		return nil, ErrNotFound
	}
	return row.clone(), nil
}

// Rotate implements Store.
func (s *MemoryStore) Rotate(_ context.Context, principalID, oldID string, next *Credential) error {
	if err := validateNext(principalID, next); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rows[oldID]
	if !ok || old.PrincipalID != principalID || old.Kind != next.Kind || !old.ActiveAt(s.now()) {
		return ErrNotFound
	}
	if _, exists := s.rows[next.ID]; exists {
		return ErrDuplicate
	}
	old.Revoked = true
	s.rows[next.ID] = next.clone()
	return nil
}

// Revoke implements Store.
func (s *MemoryStore) Revoke(_ context.Context, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[credentialID]; ok {
		row.Revoked = true
	}
	return nil
}

// RevokeAllForPrincipal implements Store.
func (s *MemoryStore) RevokeAllForPrincipal(_ context.Context, principalID string, kind jwt.Kind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.rows {
		if row.PrincipalID == principalID && row.Kind == kind && !row.Revoked {
			row.Revoked = true
			n++
		}
	}
	return n, nil
}

// PurgeExpiredBefore implements Store.
func (s *MemoryStore) PurgeExpiredBefore(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, row := range s.rows {
		if row.ExpiresAt.Unix() < now.Unix() {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows, revoked or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
