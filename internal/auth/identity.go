package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles. Unknown role strings are
// rejected at parse time, never defaulted.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole validates a stored role value against the closed enum.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
}

// Permission is a coarse capability string required by an endpoint and
// granted wholesale by role. Resource ownership is not expressed here;
// it is enforced by owner-id filters in every store query.
type Permission string

const (
	PermissionRead          Permission = "read"
	PermissionPaymentVerify Permission = "billing.payment.verify"
	PermissionUserManage    Permission = "users.manage"
)

// Grants reports whether the role carries the permission. The switch is
// exhaustive over the Role enum so a new role forces review here.
func (r Role) Grants(p Permission) bool {
	switch r {
	case RoleUser:
		return p == PermissionRead
	case RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Identity is the resolved, verified representation of the caller for
// the duration of one request. It is derived per request and never
// persisted by this package.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Authorize requires every permission to be granted by the identity's
// role. Any miss denies the whole request.
func Authorize(identity Identity, required ...Permission) error {
	for _, p := range required {
		if !identity.Role.Grants(p) {
			return ErrForbidden
		}
	}
	return nil
}
