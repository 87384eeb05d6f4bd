// Package guard decides, for every navigation, whether a route may render
// given the current session state. It is a pure function: it never performs
// navigation itself and never throws; the caller acts on the returned
// Outcome. The tenant route tree and the admin route tree are evaluated
// against their own principal and never fall back to the other.
package guard

import (
	sentinel "github.com/danielcipriano1979/sentinel"
	"github.com/danielcipriano1979/sentinel/session"
)

// Outcome is the guard's decision for a navigation target.
type Outcome int

const (
	// Render allows the route's content to render.
	Render Outcome = iota
	// Loading renders a placeholder while the principal is still resolving,
	// preventing a flash of the redirect or of protected content.
	Loading
	// RedirectToLogin sends an unauthenticated visitor to the login route.
	RedirectToLogin
	// Denied renders the access-denied view for an authenticated principal
	// whose role the route does not admit.
	Denied
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectToLogin:
		return "redirect-to-login"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Evaluate decides a tenant route. Decision order, first match wins:
// public routes always render; unsettled session shows the placeholder;
// absent principal redirects; disallowed role is denied; otherwise render.
func Evaluate(state session.State, requirement sentinel.RouteRequirement) Outcome {
	if !requirement.RequiresAuth {
		return Render
	}
	if state.UserLoading {
		return Loading
	}
	if state.UserPrincipal == nil {
		return RedirectToLogin
	}
	if !requirement.RoleAllowed(state.UserPrincipal.Role) {
		return Denied
	}
	return Render
}

// EvaluateAdmin decides an admin route against the admin identity. Admin
// principals carry no tenant role, so a role allow-list on an admin route is
// meaningless and ignored; any resolved admin passes.
func EvaluateAdmin(state session.State, requirement sentinel.RouteRequirement) Outcome {
	if !requirement.RequiresAuth {
		return Render
	}
	if state.AdminLoading {
		return Loading
	}
	if state.AdminPrincipal == nil {
		return RedirectToLogin
	}
	return Render
}
