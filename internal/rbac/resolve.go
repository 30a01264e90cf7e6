package rbac

import (
	"sort"
	"strings"
)

// NormalizePermissions validates raw permission values against the closed
// set. Unknown values and duplicates are dropped; the result is sorted so
// persisted sets compare stably.
func NormalizePermissions(raw []int) []Permission {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[Permission]struct{}, len(raw))
	var out []Permission
	for _, v := range raw {
		p := Permission(v)
		if !p.Known() {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NormalizeRoles validates role names, dropping unknown entries and
// duplicates. Names are matched case-insensitively since the backend has
// shipped both spellings over time.
func NormalizeRoles(raw []string) []Role {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(raw))
	var out []Role
	for _, v := range raw {
		r := Role(strings.TrimSpace(strings.ToLower(v)))
		if !r.Known() {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// RoleIDsToNames maps numeric role identifiers to role names. Unknown IDs
// are dropped rather than rejected; the source is a semi-trusted backend.
func RoleIDsToNames(ids []int) []Role {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(ids))
	var out []Role
	for _, id := range ids {
		r, ok := idToRole[id]
		if !ok {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// RoleNamesToIDs is the inverse of RoleIDsToNames over the fixed bijection.
func RoleNamesToIDs(roles []Role) []int {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(roles))
	var out []int
	for _, r := range roles {
		id, ok := roleToID[r]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PermissionsForRoles returns the union of the role table rows for every
// known role in the input.
func PermissionsForRoles(roles []Role) []Permission {
	set := make(map[Permission]struct{})
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			set[p] = struct{}{}
		}
	}
	return sortedPermissions(set)
}

// PermissionsForRoleIDs is PermissionsForRoles after ID translation.
func PermissionsForRoleIDs(ids []int) []Permission {
	return PermissionsForRoles(RoleIDsToNames(ids))
}

// Effective computes the permission set actually used for authorization:
// the explicit set united with everything implied by role names and role
// IDs. Derived on demand, never stored.
func Effective(explicit []Permission, roles []Role, roleIDs []int) []Permission {
	set := make(map[Permission]struct{}, len(explicit))
	for _, p := range explicit {
		if p.Known() {
			set[p] = struct{}{}
		}
	}
	for _, p := range PermissionsForRoles(roles) {
		set[p] = struct{}{}
	}
	for _, p := range PermissionsForRoleIDs(roleIDs) {
		set[p] = struct{}{}
	}
	return sortedPermissions(set)
}

// InferRoles derives a role assignment from a validated permission set.
// Used as the last resort when the backend supplied neither roles nor role
// IDs: a logged-in user must never end up with zero resolvable access.
func InferRoles(perms []Permission) []Role {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	has := func(p Permission) bool {
		_, ok := set[p]
		return ok
	}
	switch {
	case has(PermAddUser) && has(PermDeleteUser) && has(PermManageCategory):
		return []Role{RoleAdmin}
	case has(PermViewAllTickets) && has(PermChangeStatus):
		return []Role{RoleSupporter}
	default:
		return []Role{RoleUser}
	}
}

// HasPermission tests membership against an effective set.
func HasPermission(effective []Permission, p Permission) bool {
	for _, e := range effective {
		if e == p {
			return true
		}
	}
	return false
}

// HasRole tests role membership.
func HasRole(roles []Role, r Role) bool {
	for _, e := range roles {
		if e == r {
			return true
		}
	}
	return false
}

// HasRoleID tests numeric role membership.
func HasRoleID(ids []int, id int) bool {
	for _, e := range ids {
		if e == id {
			return true
		}
	}
	return false
}

// CheckAccess decides whether a caller holding the given effective
// permissions and roles satisfies the optional requirement lists. With no
// requirements the answer is permit. requireAll selects AND semantics
// across the combined requirements; the default is ANY.
func CheckAccess(perms []Permission, roles []Role, requiredPerms []Permission, requiredRoles []Role, requireAll bool) bool {
	if len(requiredPerms) == 0 && len(requiredRoles) == 0 {
		return true
	}
	if requireAll {
		for _, p := range requiredPerms {
			if !HasPermission(perms, p) {
				return false
			}
		}
		for _, r := range requiredRoles {
			if !HasRole(roles, r) {
				return false
			}
		}
		return true
	}
	for _, p := range requiredPerms {
		if HasPermission(perms, p) {
			return true
		}
	}
	for _, r := range requiredRoles {
		if HasRole(roles, r) {
			return true
		}
	}
	return false
}

func sortedPermissions(set map[Permission]struct{}) []Permission {
	if len(set) == 0 {
		return nil
	}
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
