package permission

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StaticSource is an in-memory Source. Permissions and roles are registered
// during initialization; after Freeze the catalog is fixed while role
// activation and principal assignments stay mutable.
type StaticSource struct {
	mu sync.RWMutex

	permissions map[string]Permission
	permByName  map[string]string
	permOrder   []string

	roles      map[string]Role
	roleByName map[string]string

	assignments map[string][]string
	frozen      bool
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource returns an empty StaticSource.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		permissions: make(map[string]Permission),
		permByName:  make(map[string]string),
		roles:       make(map[string]Role),
		roleByName:  make(map[string]string),
		assignments: make(map[string][]string),
	}
}

// RegisterPermission adds p to the catalog. Ids and names must be unique.
func (s *StaticSource) RegisterPermission(p Permission) error {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("permission: id and name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrFrozen
	}
	if _, exists := s.permissions[p.ID]; exists {
		return fmt.Errorf("%w: permission id %q", ErrConflict, p.ID)
	}
	if _, exists := s.permByName[p.Name]; exists {
		return fmt.Errorf("%w: permission name %q", ErrConflict, p.Name)
	}

	s.permissions[p.ID] = clonePermission(p)
	s.permByName[p.Name] = p.ID
	s.permOrder = append(s.permOrder, p.ID)
	return nil
}

// Freeze prevents further catalog registration.
func (s *StaticSource) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// PermissionCount returns the size of the catalog.
func (s *StaticSource) PermissionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.permissions)
}

// RoleIDsForPrincipal implements Source.
func (s *StaticSource) RoleIDsForPrincipal(_ context.Context, principalID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.assignments[principalID]...), nil
}

// RolesByIDs implements Source.
func (s *StaticSource) RolesByIDs(_ context.Context, ids []string) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, cloneRole(r))
		}
	}
	return out, nil
}

// PermissionsByIDs implements Source.
func (s *StaticSource) PermissionsByIDs(_ context.Context, ids []string) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Permission, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.permissions[id]; ok {
			out = append(out, clonePermission(p))
		}
	}
	return out, nil
}

// AllPermissions implements Source.
func (s *StaticSource) AllPermissions(_ context.Context) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Permission, 0, len(s.permOrder))
	for _, id := range s.permOrder {
		out = append(out, clonePermission(s.permissions[id]))
	}
	return out, nil
}

func clonePermission(p Permission) Permission {
	if p.Conditions != nil {
		cond := make(map[string]any, len(p.Conditions))
		for k, v := range p.Conditions {
			cond[k] = v
		}
		p.Conditions = cond
	}
	return p
}

func cloneRole(r Role) Role {
	r.PermissionIDs = append([]string(nil), r.PermissionIDs...)
	return r
}
