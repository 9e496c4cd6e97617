package auth

import (
	"context"
	"fmt"
)

// Role represents an admin staff role.
type Role string

const (
	RoleSuperAdmin        Role = "super_admin"
	RoleFinanceAdmin      Role = "finance_admin"
	RoleOperationsManager Role = "operations_manager"
)

// Role sets used by the payout operations.
var (
	PayoutOperators = []Role{RoleSuperAdmin, RoleFinanceAdmin, RoleOperationsManager}
	PayoutApprovers = []Role{RoleSuperAdmin, RoleFinanceAdmin}
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleSuperAdmin, RoleFinanceAdmin, RoleOperationsManager:
		return Role(value), true
	default:
		return "", false
	}
}

// HasAnyRole reports whether role is one of allowed.
func HasAnyRole(role Role, allowed ...Role) bool {
	if role == "" {
		return false
	}
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}

// Require checks the caller identity in ctx against allowed roles.
// It returns ErrUnauthorized without an identity and ErrForbidden for other roles.
func Require(ctx context.Context, allowed ...Role) (Role, error) {
	role := RoleFromContext(ctx)
	if role == "" || SubjectFromContext(ctx) == "" {
		return "", ErrUnauthorized
	}
	if !HasAnyRole(role, allowed...) {
		return role, fmt.Errorf("%w: role %s", ErrForbidden, role)
	}
	return role, nil
}
