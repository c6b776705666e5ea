package models

// Role is the closed set of capability buckets a principal can hold.
// Exactly one role per principal.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTutor      Role = "tutor"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var roleIDs = map[Role]int{
	RoleStudent:    1,
	RoleTutor:      2,
	RoleAdmin:      3,
	RoleSuperadmin: 4,
}

// ParseRole maps a stored role name onto the enumeration. The boolean is
// false for anything outside the closed set.
func ParseRole(name string) (Role, bool) {
	role := Role(name)
	_, ok := roleIDs[role]
	return role, ok
}

// ID returns the stable numeric identifier embedded in token claims.
func (r Role) ID() int {
	return roleIDs[r]
}

func (r Role) Valid() bool {
	_, ok := roleIDs[r]
	return ok
}

// Implies reports whether r satisfies a gate that allows any of required.
// Superadmin satisfies every gate. This is the only place the bypass rule
// lives; handlers must not compare role names directly.
func (r Role) Implies(required ...Role) bool {
	if r == RoleSuperadmin {
		return true
	}
	for _, req := range required {
		if r == req {
			return true
		}
	}
	return false
}

// OwnerRole returns the role that may own principals of role r through a
// hierarchy edge. The boolean is false for roles that are never owned.
func (r Role) OwnerRole() (Role, bool) {
	switch r {
	case RoleTutor:
		return RoleAdmin, true
	case RoleStudent:
		return RoleTutor, true
	default:
		return "", false
	}
}
