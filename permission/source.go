package permission

import "context"

// Source is the read side of role and permission storage.
//
// Lookups by id skip ids that do not exist rather than failing.
type Source interface {
	RoleIDsForPrincipal(ctx context.Context, principalID string) ([]string, error)
	RolesByIDs(ctx context.Context, ids []string) ([]Role, error)
	PermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error)
	AllPermissions(ctx context.Context) ([]Permission, error)
}
