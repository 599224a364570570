// Package policy decides who may administer memberships and which accounts are off limits.
package policy

import (
	"errors"

	"github.com/covercompare/membergate/pkg/schema"
)

var (
	// ErrInsufficientPrivilege is the denial reason for a principal without the admin role.
	ErrInsufficientPrivilege = errors.New("administrator privilege required")
	// ErrProtectedAccount is the denial reason for an admin or exempt target.
	ErrProtectedAccount = errors.New("this account cannot be modified")
)

// Decision is the outcome of Authorize. Reason is nil when Allowed.
type Decision struct {
	Allowed bool
	Reason  error
}

// Err returns the denial reason, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

// CanAdminister reports whether a principal with role may run lifecycle transitions at all.
func CanAdminister(role schema.Role) bool {
	return role == schema.RoleAdmin
}

// IsProtected reports whether target is exempt from lifecycle management.
func IsProtected(target schema.Profile) bool {
	return target.Role == schema.RoleAdmin || target.Exempt
}

// Authorize decides whether a principal holding principalRole may transition target.
func Authorize(principalRole schema.Role, target schema.Profile) Decision {
	if !CanAdminister(principalRole) {
		return Decision{Reason: ErrInsufficientPrivilege}
	}
	if IsProtected(target) {
		return Decision{Reason: ErrProtectedAccount}
	}
	return Decision{Allowed: true}
}
