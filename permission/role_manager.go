package permission

import (
	"fmt"
	"strings"
)

// RegisterRole adds r to the StaticSource. Every permission id must already
// be registered; role ids and names must be unique.
func (s *StaticSource) RegisterRole(r Role) error {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	if r.ID == "" || r.Name == "" {
		return fmt.Errorf("permission: role id and name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrFrozen
	}
	if _, exists := s.roles[r.ID]; exists {
		return fmt.Errorf("%w: role id %q", ErrConflict, r.ID)
	}
	if _, exists := s.roleByName[r.Name]; exists {
		return fmt.Errorf("%w: role name %q", ErrConflict, r.Name)
	}
	for _, pid := range r.PermissionIDs {
		if _, ok := s.permissions[pid]; !ok {
			return fmt.Errorf("%w: permission %q referenced by role %q", ErrNotFound, pid, r.Name)
		}
	}

	s.roles[r.ID] = cloneRole(r)
	s.roleByName[r.Name] = r.ID
	return nil
}

// SetRoleActive toggles a role. Callers must invalidate cached principals.
func (s *StaticSource) SetRoleActive(roleID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return fmt.Errorf("%w: role %q", ErrNotFound, roleID)
	}
	r.Active = active
	s.roles[roleID] = r
	return nil
}

// RoleByName returns the role registered under name.
func (s *StaticSource) RoleByName(name string) (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.roleByName[name]
	if !ok {
		return Role{}, false
	}
	return cloneRole(s.roles[id]), true
}

// Assign grants roleIDs to principalID. Already held roles are skipped.
func (s *StaticSource) Assign(principalID string, roleIDs ...string) error {
	if strings.TrimSpace(principalID) == "" {
		return fmt.Errorf("permission: principal id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range roleIDs {
		if _, ok := s.roles[id]; !ok {
			return fmt.Errorf("%w: role %q", ErrNotFound, id)
		}
	}
	held := s.assignments[principalID]
	for _, id := range roleIDs {
		if !containsString(held, id) {
			held = append(held, id)
		}
	}
	s.assignments[principalID] = held
	return nil
}

// Unassign removes roleID from principalID. Unknown pairs are ignored.
func (s *StaticSource) Unassign(principalID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.assignments[principalID]
	out := held[:0]
	for _, id := range held {
		if id != roleID {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		delete(s.assignments, principalID)
		return
	}
	s.assignments[principalID] = out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
