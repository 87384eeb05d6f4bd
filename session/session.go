// Package session holds the live dual-identity session state of the
// dashboard: the platform-admin bearer token and principal, and the ambient
// tenant-user principal. The two identities are independent; holding one
// implies nothing about the other.
//
// State is owned by a single Manager instance that lives for the process
// lifetime and is injected into consumers. Only the Manager's own methods
// mutate state; the route guard and page components read snapshots.
package session

import (
	"context"

	sentinel "github.com/danielcipriano1979/sentinel"
)

// AdminResolver turns a bearer token into an admin principal.
type AdminResolver interface {
	AdminMe(ctx context.Context, token string) (*sentinel.AdminPrincipal, error)
}

// UserResolver resolves the tenant principal carried by the ambient session.
type UserResolver interface {
	Me(ctx context.Context) (*sentinel.UserPrincipal, error)
}

// State is a point-in-time snapshot of both identities. Principal pointers
// are treated as immutable once published.
type State struct {
	AdminToken     string
	AdminPrincipal *sentinel.AdminPrincipal
	AdminLoading   bool
	AdminError     string

	UserPrincipal *sentinel.UserPrincipal
	UserLoading   bool
}

// AdminAuthenticated reports whether a resolved admin principal is held.
func (s State) AdminAuthenticated() bool {
	return s.AdminPrincipal != nil
}

// UserAuthenticated reports whether a resolved tenant principal is held.
// While UserLoading is true the answer is not yet meaningful; consumers must
// treat loading and absent as distinct states.
func (s State) UserAuthenticated() bool {
	return s.UserPrincipal != nil
}
