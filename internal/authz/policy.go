// Package authz implements the role hierarchy and permission policy for the
// governance subsystem. The catalog is compiled once at startup and never
// mutated afterwards; callers share a single Policy value.
package authz

// Catalog holds the inherited permission set for every role.
type Catalog struct {
	inherited map[Role]map[Action]struct{}
}

// NewCatalog compiles the per-role grant lists into inherited permission sets.
// A role inherits every grant of every role at or below it in the hierarchy.
func NewCatalog() *Catalog {
	inherited := make(map[Role]map[Action]struct{}, len(roleOrder))
	accumulated := make(map[Action]struct{})

	for _, role := range roleOrder {
		for _, action := range grants[role] {
			accumulated[action] = struct{}{}
		}
		set := make(map[Action]struct{}, len(accumulated))
		for action := range accumulated {
			set[action] = struct{}{}
		}
		inherited[role] = set
	}

	return &Catalog{inherited: inherited}
}

// Has reports whether the role's inherited set contains the action.
func (c *Catalog) Has(role Role, action Action) bool {
	set, ok := c.inherited[role]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// PermissionsFor returns the role's full inherited grant list in hierarchy order.
func (c *Catalog) PermissionsFor(role Role) []Action {
	set, ok := c.inherited[role]
	if !ok {
		return nil
	}
	out := make([]Action, 0, len(set))
	for _, r := range roleOrder {
		for _, action := range grants[r] {
			if _, found := set[action]; found {
				out = append(out, action)
			}
		}
	}
	return out
}

// Context carries optional request details consulted by special-case rules.
type Context struct {
	TargetRole    Role
	TargetUserID  uint
	CurrentUserID uint
}

// Policy evaluates whether a role may perform a governed action.
type Policy struct {
	catalog *Catalog
}

// NewPolicy builds a policy over the given catalog.
func NewPolicy(catalog *Catalog) *Policy {
	return &Policy{catalog: catalog}
}

// IsAllowed reports whether a user holding role may perform action. Special
// cases are evaluated before inherited grants and override them. The method
// never errors; callers translate a false result into an authorization failure.
func (p *Policy) IsAllowed(role Role, action Action, ctx Context) bool {
	if !role.Valid() {
		return false
	}

	// Promotion requests are bounded by the role ceiling: a super admin has no
	// higher rank to request, and an admin may never request super_admin.
	if action == ActionRequestPromotion {
		if role == RoleSuperAdmin {
			return false
		}
		if role == RoleAdmin && ctx.TargetRole == RoleSuperAdmin {
			return false
		}
		return true
	}

	if _, managed := userManagementActions[action]; managed {
		if role != RoleAdmin && role != RoleSuperAdmin {
			return false
		}
	}

	return p.catalog.Has(role, action)
}

// CheckAll evaluates several actions at once and returns the per-action results.
func (p *Policy) CheckAll(role Role, actions []Action, ctx Context) map[Action]bool {
	results := make(map[Action]bool, len(actions))
	for _, action := range actions {
		results[action] = p.IsAllowed(role, action, ctx)
	}
	return results
}
