package permission

import (
	"errors"
	"sort"
)

var (
	// ErrConflict is returned when a role or permission id or name is taken.
	ErrConflict = errors.New("permission: conflict")
	// ErrNotFound is returned when a referenced role or permission does not exist.
	ErrNotFound = errors.New("permission: not found")
	// ErrUnavailable wraps Source failures.
	ErrUnavailable = errors.New("permission: source unavailable")
	// ErrFrozen is returned by registration after Freeze.
	ErrFrozen = errors.New("permission: registry frozen")
)

// Permission is a named capability.
type Permission struct {
	ID         string
	Name       string
	Action     string
	Subject    string
	Conditions map[string]any
}

// Role groups permissions. Inactive roles grant nothing.
type Role struct {
	ID            string
	Name          string
	Active        bool
	PermissionIDs []string
}

// Set is an immutable set of names.
type Set struct {
	m map[string]struct{}
}

// NewSet builds a Set from names, ignoring duplicates and empty strings.
func NewSet(names ...string) Set {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			m[n] = struct{}{}
		}
	}
	return Set{m: m}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s.m[name]
	return ok
}

// HasAll reports whether every name is present. An empty list is satisfied.
func (s Set) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one name is present. An empty list is satisfied.
func (s Set) HasAny(names ...string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// Len returns the number of names.
func (s Set) Len() int { return len(s.m) }

// Names returns the members in sorted order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s.m))
	for n := range s.m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
