package domain

// Role represents the kind of party acting on a delivery.
type Role string

// List of possible actor roles
const (
	RoleCustomer Role = "customer"
	RoleCourier  Role = "courier"
	RoleStaff    Role = "staff"
)

var allowedRoles = [...]Role{
	RoleCustomer, RoleCourier, RoleStaff,
}

// Valid checks if the Role is valid
func (r Role) Valid() bool {
	for _, v := range allowedRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Actor is the authenticated party behind a request or a connection.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor acts on behalf of internal collaborators (payment confirmation).
var SystemActor = Actor{ID: "system", Role: RoleStaff}

// IsCustomer reports whether the actor is the given customer.
func (a Actor) IsCustomer(ref string) bool {
	return a.Role == RoleCustomer && ref != "" && a.ID == ref
}

// IsCourier reports whether the actor is the given courier.
func (a Actor) IsCourier(ref string) bool {
	return a.Role == RoleCourier && ref != "" && a.ID == ref
}
