package models

// UserRole represents the marketplace roles carried in access tokens.
type UserRole string

const (
	RoleCreator UserRole = "creator"
	RoleEditor  UserRole = "editor"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether the role is one of the known marketplace roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleCreator, RoleEditor, RoleAdmin:
		return true
	}
	return false
}
