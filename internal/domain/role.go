package domain

// Role is a user's authority level within a channel. Roles form a total
// order: admin > moderator > member. Comparisons go through AtLeast so the
// ordering lives in exactly one place.
type Role int

const (
	// RoleNone is the zero value and means the user has no access to the
	// channel at all. It is distinct from RoleMember: a public channel
	// grants RoleMember implicitly, a private channel grants nothing.
	RoleNone Role = iota
	RoleMember
	RoleModerator
	RoleAdmin
)

// ParseRole maps the stored role string onto the ordered enumeration.
// Unknown strings resolve to RoleMember, matching the store's default.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "moderator":
		return RoleModerator
	default:
		return RoleMember
	}
}

// String returns the wire/storage representation of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleModerator:
		return "moderator"
	case RoleMember:
		return "member"
	default:
		return "none"
	}
}

// AtLeast reports whether r carries at least the authority of other.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}
