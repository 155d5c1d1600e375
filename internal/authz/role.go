package authz

import "strings"

// Role identifies a position in the platform role hierarchy.
type Role string

// Platform roles, ordered from lowest to highest rank.
const (
	RoleUser          Role = "user"
	RoleProblemSetter Role = "problem_setter"
	RoleAdmin         Role = "admin"
	RoleSuperAdmin    Role = "super_admin"
)

// roleOrder is the total order over roles. Permission inheritance and
// promotion/demotion walk this slice.
var roleOrder = []Role{RoleUser, RoleProblemSetter, RoleAdmin, RoleSuperAdmin}

// Roles returns every valid role from lowest to highest rank.
func Roles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

// ParseRole normalizes a raw role string and reports whether it names a valid role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := role.Rank(); !ok {
		return "", false
	}
	return role, true
}

// Rank returns the role's position in the hierarchy, lowest first.
func (r Role) Rank() (int, bool) {
	for i, role := range roleOrder {
		if role == r {
			return i, true
		}
	}
	return -1, false
}

// Valid reports whether the role is one of the four platform roles.
func (r Role) Valid() bool {
	_, ok := r.Rank()
	return ok
}

// AtLeast reports whether the role ranks at or above other. Unknown roles rank below everything.
func (r Role) AtLeast(other Role) bool {
	rank, ok := r.Rank()
	if !ok {
		return false
	}
	otherRank, ok := other.Rank()
	if !ok {
		return false
	}
	return rank >= otherRank
}

// Next returns the promotion target for the role. The second return is false at
// the top of the hierarchy or for an unknown role.
func (r Role) Next() (Role, bool) {
	rank, ok := r.Rank()
	if !ok || rank == len(roleOrder)-1 {
		return "", false
	}
	return roleOrder[rank+1], true
}

// Previous returns the demotion target for the role. The second return is false
// at the bottom of the hierarchy or for an unknown role.
func (r Role) Previous() (Role, bool) {
	rank, ok := r.Rank()
	if !ok || rank == 0 {
		return "", false
	}
	return roleOrder[rank-1], true
}

func (r Role) String() string {
	return string(r)
}
