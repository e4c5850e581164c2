package domain

// Role is the authorization role attached to a request by the upstream
// auth layer. The core trusts it and performs only ownership checks.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Requester identifies the authenticated principal behind a call.
// AuthN is an external collaborator; this is its verified output.
type Requester struct {
	ID   string
	Role Role
}
