package client

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// CurrentUserSource exposes the signed-in user; *SessionStore satisfies it.
type CurrentUserSource interface {
	Current() *User
}

// Decision is the outcome of a navigation guard. Redirect is set only when
// access is denied.
type Decision struct {
	Allowed  bool
	Redirect string
}

// AuthGuard admits any signed-in user and sends everyone else to the login page.
func AuthGuard(s CurrentUserSource) Decision {
	if s.Current() != nil {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: LoginPath}
}

// AdminGuard admits admins only. Anyone else, signed in or not, goes to the
// dashboard.
func AdminGuard(s CurrentUserSource) Decision {
	if u := s.Current(); u != nil && u.IsAdmin() {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: DashboardPath}
}
