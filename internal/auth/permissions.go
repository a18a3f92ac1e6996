package auth

import "fmt"

// Role is an operator authorisation tier.
type Role string

// Roles, weakest first.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleOwner    Role = "owner"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleOwner}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	for _, r := range ValidRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Permission represents a named capability on the API.
type Permission string

// Permission constants.
const (
	PermStatusRead   Permission = "status:read"
	PermLightOperate Permission = "light:operate"
	PermLinkOperate  Permission = "link:operate"
	PermProvision    Permission = "link:provision"
	PermFactoryReset Permission = "system:factory_reset"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermStatusRead,
	},
	RoleOperator: {
		PermStatusRead,
		PermLightOperate,
		PermLinkOperate,
	},
	RoleOwner: {
		PermStatusRead,
		PermLightOperate,
		PermLinkOperate,
		PermProvision,
		PermFactoryReset,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
