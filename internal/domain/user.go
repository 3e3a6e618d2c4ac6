package domain

// Role is the capability set of an authenticated user.
type Role string

const (
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

// IsDispatcher reports whether the actor holds dispatcher privileges.
func (a Actor) IsDispatcher() bool {
	return a.Role == RoleDispatcher
}
