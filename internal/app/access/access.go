package access

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"rentme-reservations/internal/app/middleware"
)

var ErrUnauthenticated = errors.New("access: caller not authenticated")

type Role string

const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
	RoleSystem Role = "system"
)

// Principal is the caller as asserted by the upstream identity provider.
type Principal struct {
	UserID string
	Roles  []Role
}

func (p Principal) Has(role Role) bool {
	return slices.Contains(p.Roles, role)
}

// System is the principal used by schedulers and consumers inside the service.
func System() Principal {
	return Principal{UserID: "system", Roles: []Role{RoleSystem}}
}

func ParseRoles(raw string) []Role {
	var roles []Role
	for _, part := range strings.Split(raw, ",") {
		role := Role(strings.ToLower(strings.TrimSpace(part)))
		switch role {
		case RoleRenter, RoleOwner, RoleSystem:
			if !slices.Contains(roles, role) {
				roles = append(roles, role)
			}
		}
	}
	return roles
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// Guarded messages declare who may send them. Roles lists acceptable roles
// (any of them), Actor is the user the message acts for.
type Guarded interface {
	Roles() []Role
	Actor() string
}

// Authorizer checks Guarded messages against the principal in context.
// The system principal may send anything.
type Authorizer struct{}

func (Authorizer) Authorize(ctx context.Context, message any) error {
	guarded, ok := message.(Guarded)
	if !ok {
		return nil
	}
	p, ok := FromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if p.Has(RoleSystem) {
		return nil
	}
	if roles := guarded.Roles(); len(roles) > 0 && !slices.ContainsFunc(roles, p.Has) {
		return fmt.Errorf("%w: requires one of %v", middleware.ErrForbidden, roles)
	}
	if actor := guarded.Actor(); actor != "" && actor != p.UserID {
		return fmt.Errorf("%w: acting for another user", middleware.ErrForbidden)
	}
	return nil
}

var _ middleware.Authorizer = Authorizer{}
