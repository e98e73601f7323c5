package permission

// HasPermission reports whether role may perform action on resource within dept.
// super_admin is checked before any department filtering.
func HasPermission(role Role, dept Department, resource Resource, action Action) bool {
	if role == RoleSuperAdmin {
		return true
	}
	t, ok := templates[role]
	if !ok || !t.AllowsDepartment(dept) {
		return false
	}
	return t.Permissions.Has(New(dept, resource, action))
}

// UserPermissions returns the permissions a user with role in dept holds.
// For admin, permissions scoped to the admin department are included whatever
// the user's own department is.
func UserPermissions(role Role, dept Department) Set {
	t, ok := templates[role]
	if !ok {
		return Set{}
	}
	if role == RoleSuperAdmin {
		return t.Permissions.Clone()
	}
	out := make(Set)
	for p := range t.Permissions {
		switch {
		case p.Department == dept:
			out.Add(p)
		case role == RoleAdmin && p.Department == DepartmentAdmin:
			out.Add(p)
		}
	}
	return out
}

// ResourcesForUser returns the distinct resources reachable through UserPermissions.
func ResourcesForUser(role Role, dept Department) []Resource {
	return UserPermissions(role, dept).Resources()
}

// CanAccessResource reports whether any permission on resource is held.
func CanAccessResource(role Role, dept Department, resource Resource) bool {
	for _, r := range ResourcesForUser(role, dept) {
		if r == resource {
			return true
		}
	}
	return false
}

// Allowed is the route-level check: the triple in the user's own department, or
// for admin the same resource/action in the admin department.
func Allowed(role Role, dept Department, resource Resource, action Action) bool {
	if HasPermission(role, dept, resource, action) {
		return true
	}
	return role == RoleAdmin && HasPermission(role, DepartmentAdmin, resource, action)
}
