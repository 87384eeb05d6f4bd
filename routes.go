package sentinel

// RouteRequirement declares what a navigable route demands before it may
// render. It is supplied per route by the routing table; the guard is a pure
// function of a requirement plus the current session state and knows nothing
// about paths.
type RouteRequirement struct {
	// RequiresAuth gates the route behind an authenticated principal.
	// Public routes (login, registration, invite redemption) leave it false
	// and never consult principal state.
	RequiresAuth bool

	// AllowedRoles restricts an authenticated route to the listed tenant
	// roles. Empty means any authenticated role is sufficient.
	AllowedRoles []Role
}

// PublicRoute declares a route that renders unconditionally.
func PublicRoute() RouteRequirement {
	return RouteRequirement{}
}

// AuthenticatedRoute declares a route that requires a principal, optionally
// restricted to the given roles.
func AuthenticatedRoute(roles ...Role) RouteRequirement {
	return RouteRequirement{RequiresAuth: true, AllowedRoles: roles}
}

// RoleAllowed reports whether the requirement admits the given role.
func (r RouteRequirement) RoleAllowed(role Role) bool {
	if len(r.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range r.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}
