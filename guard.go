package auth

import (
	"context"
	"fmt"

	"github.com/goliatone/go-router"
)

// PermOperator combines required permissions with AND or OR semantics
type PermOperator string

const (
	// PermOperatorAND requires every permission to be granted
	PermOperatorAND PermOperator = "AND"
	// PermOperatorOR requires at least one permission to be granted
	PermOperatorOR PermOperator = "OR"
)

// HasPermissions evaluates the granted authority set against the required
// permissions. An empty required set passes vacuously for both operators.
func HasPermissions(granted []string, required []string, operator PermOperator) bool {
	grantedSet := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		grantedSet[g] = struct{}{}
	}

	if operator == PermOperatorAND {
		for _, r := range required {
			if _, ok := grantedSet[r]; !ok {
				return false
			}
		}
		return true
	}

	// OR is the default operator
	for _, r := range required {
		if _, ok := grantedSet[r]; ok {
			return true
		}
	}
	return len(required) == 0
}

// PermissionGuard is a declarative precondition evaluated before a
// protected operation runs. It knows nothing about the operation itself.
type PermissionGuard struct {
	logger Logger
}

// NewPermissionGuard returns a guard with the default logger
func NewPermissionGuard() *PermissionGuard {
	return &PermissionGuard{logger: defLogger{}}
}

func (g *PermissionGuard) WithLogger(logger Logger) *PermissionGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Check resolves the principal from the call context and evaluates the
// required permission expression. A missing principal is a usage defect in
// the caller but still resolves to a typed failure, never a crash.
func (g *PermissionGuard) Check(ctx context.Context, operator PermOperator, required ...string) error {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		g.logger.Error("authentication credentials are missing or invalid")
		return ErrAuthRequired
	}

	granted := principal.Authorities()
	g.logger.Debug("principal authorities: %v", granted)

	if !HasPermissions(granted, required, operator) {
		detail := fmt.Sprintf("access denied. required permissions (%s): %v", operator, required)
		g.logger.Error("permission check failed for [%s]: %s", principal.LoginID(), detail)
		return noPermissionError(operator, required)
	}

	g.logger.Debug("permission check passed for [%s]", principal.LoginID())
	return nil
}

func noPermissionError(operator PermOperator, required []string) error {
	clone := ErrNoPermission.Clone()
	if clone == nil {
		return ErrNoPermission
	}
	clone.Source = ErrNoPermission
	return clone.WithMetadata(map[string]any{
		"operator": string(operator),
		"required": required,
	})
}

// RequirePermission returns middleware that runs the permission guard
// before the wrapped handler, rejecting the request before any side effect
func RequirePermission(operator PermOperator, required ...string) router.MiddlewareFunc {
	return RequirePermissionWith(NewPermissionGuard(), operator, required...)
}

// RequirePermissionWith is RequirePermission with a caller supplied guard
func RequirePermissionWith(guard *PermissionGuard, operator PermOperator, required ...string) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if err := guard.Check(c.Context(), operator, required...); err != nil {
				return err
			}
			return hf(c)
		}
	}
}
