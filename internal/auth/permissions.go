package auth

import "slices"

// Permission is a named capability.
type Permission string

// Permission constants.
const (
	PermLevelsRead     Permission = "levels:read"
	PermCaptureTrigger Permission = "capture:trigger"
	PermDebugRead      Permission = "debug:read"
)

// rolePermissions is the whole authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermLevelsRead,
	},
	RoleOperator: {
		PermLevelsRead,
		PermCaptureTrigger,
		PermDebugRead,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of the permissions of role.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
