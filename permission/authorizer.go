package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTTL bounds how stale a principal's resolved permissions may be.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultAdminRole is the role name that grants the full catalog.
	DefaultAdminRole = "admin"
	// DefaultLoadTimeout bounds one shared Source load.
	DefaultLoadTimeout = 10 * time.Second
)

// CacheObserver receives cache hit/miss notifications.
type CacheObserver interface {
	PermissionCacheHit()
	PermissionCacheMiss()
}

// Config configures an Authorizer.
type Config struct {
	CacheTTL time.Duration
	// AdminRole is matched case-insensitively against active role names.
	AdminRole string
	Now       func() time.Time
	Observer  CacheObserver
	// LoadTimeout bounds a Source load shared by concurrent callers. The
	// load is detached from any single caller's cancellation.
	LoadTimeout time.Duration
}

// cacheEntry is a principal's resolved grants at cachedAt.
type cacheEntry struct {
	permissions Set
	roles       Set
	cachedAt    time.Time
}

// Authorizer answers permission and role questions for principals.
type Authorizer struct {
	source    Source
	entries   *gocache.Cache
	group     singleflight.Group
	ttl       time.Duration
	adminRole string
	now       func() time.Time
	observer  CacheObserver
	timeout   time.Duration

	// generation changes on every invalidation; loads that straddle one are
	// returned to their callers but not cached.
	generation atomic.Uint64
}

// NewAuthorizer returns an Authorizer reading from source.
func NewAuthorizer(source Source, cfg Config) (*Authorizer, error) {
	if source == nil {
		return nil, fmt.Errorf("permission: source is required")
	}
	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("permission: cache ttl must not be negative")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if strings.TrimSpace(cfg.AdminRole) == "" {
		cfg.AdminRole = DefaultAdminRole
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	return &Authorizer{
		source:    source,
		entries:   gocache.New(cfg.CacheTTL, cfg.CacheTTL),
		ttl:       cfg.CacheTTL,
		adminRole: strings.TrimSpace(cfg.AdminRole),
		now:       cfg.Now,
		observer:  cfg.Observer,
		timeout:   cfg.LoadTimeout,
	}, nil
}

// GetEffectivePermissions returns the names of every permission granted to
// principalID through its active roles.
func (a *Authorizer) GetEffectivePermissions(ctx context.Context, principalID string) (Set, error) {
	e, err := a.entry(ctx, principalID)
	if err != nil {
		return Set{}, err
	}
	return e.permissions, nil
}

// EffectiveRoles returns the names of principalID's active roles.
func (a *Authorizer) EffectiveRoles(ctx context.Context, principalID string) (Set, error) {
	e, err := a.entry(ctx, principalID)
	if err != nil {
		return Set{}, err
	}
	return e.roles, nil
}

// HasAll reports whether principalID holds every required permission.
// An empty requirement is always satisfied.
func (a *Authorizer) HasAll(ctx context.Context, principalID string, required ...string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	perms, err := a.GetEffectivePermissions(ctx, principalID)
	if err != nil {
		return false, err
	}
	return perms.HasAll(required...), nil
}

// HasAny reports whether principalID holds at least one required permission.
// An empty requirement is always satisfied.
func (a *Authorizer) HasAny(ctx context.Context, principalID string, required ...string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	perms, err := a.GetEffectivePermissions(ctx, principalID)
	if err != nil {
		return false, err
	}
	return perms.HasAny(required...), nil
}

// HasAnyRole reports whether principalID holds at least one of the named
// active roles. An empty list is always satisfied.
func (a *Authorizer) HasAnyRole(ctx context.Context, principalID string, roles ...string) (bool, error) {
	if len(roles) == 0 {
		return true, nil
	}
	held, err := a.EffectiveRoles(ctx, principalID)
	if err != nil {
		return false, err
	}
	return held.HasAny(roles...), nil
}

// Invalidate drops the cached entry for principalID.
func (a *Authorizer) Invalidate(principalID string) {
	a.generation.Add(1)
	a.entries.Delete(principalID)
	a.group.Forget(principalID)
}

// InvalidateAll drops every cached entry.
func (a *Authorizer) InvalidateAll() {
	a.generation.Add(1)
	a.entries.Flush()
}

func (a *Authorizer) entry(ctx context.Context, principalID string) (*cacheEntry, error) {
	if v, ok := a.entries.Get(principalID); ok {
		e := v.(*cacheEntry)
		if a.now().Sub(e.cachedAt) < a.ttl {
			a.hit()
			return e, nil
		}
		a.entries.Delete(principalID)
	}
	a.miss()

	ch := a.group.DoChan(principalID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		gen := a.generation.Load()
		e, err := a.resolve(loadCtx, principalID)
		if err != nil {
			return nil, err
		}
		if a.generation.Load() == gen {
			a.entries.Set(principalID, e, a.ttl)
		}
		return e, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cacheEntry), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
}

func (a *Authorizer) resolve(ctx context.Context, principalID string) (*cacheEntry, error) {
	cachedAt := a.now()

	roleIDs, err := a.source.RoleIDsForPrincipal(ctx, principalID)
	if err != nil {
		return nil, wrapSource(err)
	}
	if len(roleIDs) == 0 {
		return &cacheEntry{permissions: NewSet(), roles: NewSet(), cachedAt: cachedAt}, nil
	}
	roles, err := a.source.RolesByIDs(ctx, roleIDs)
	if err != nil {
		return nil, wrapSource(err)
	}

	var (
		roleNames []string
		permIDs   []string
		seen      = make(map[string]struct{})
		admin     bool
	)
	for _, r := range roles {
		if !r.Active {
			continue
		}
		roleNames = append(roleNames, r.Name)
		if strings.EqualFold(r.Name, a.adminRole) {
			admin = true
		}
		for _, id := range r.PermissionIDs {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				permIDs = append(permIDs, id)
			}
		}
	}

	var perms []Permission
	switch {
	case admin:
		perms, err = a.source.AllPermissions(ctx)
	case len(permIDs) > 0:
		perms, err = a.source.PermissionsByIDs(ctx, permIDs)
	}
	if err != nil {
		return nil, wrapSource(err)
	}

	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return &cacheEntry{
		permissions: NewSet(names...),
		roles:       NewSet(roleNames...),
		cachedAt:    cachedAt,
	}, nil
}

func (a *Authorizer) hit() {
	if a.observer != nil {
		a.observer.PermissionCacheHit()
	}
}

func (a *Authorizer) miss() {
	if a.observer != nil {
		a.observer.PermissionCacheMiss()
	}
}

func wrapSource(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
