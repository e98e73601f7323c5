package permission

import (
	"errors"
	"fmt"
)

// Validate checks the template table against the enum domains. It is run at
// process startup; a non-nil error means the build shipped a broken matrix.
func Validate() error {
	var errs []error
	for _, role := range allRoles {
		t, ok := templates[role]
		if !ok {
			errs = append(errs, fmt.Errorf("role %s has no template", role))
			continue
		}
		if t.Role != role {
			errs = append(errs, fmt.Errorf("template for %s is labelled %s", role, t.Role))
		}
		for _, d := range t.Departments {
			if !d.Valid() {
				errs = append(errs, fmt.Errorf("role %s: unknown department %q", role, d))
			}
		}
		for p := range t.Permissions {
			if !p.Department.Valid() || !p.Resource.Valid() || !p.Action.Valid() {
				errs = append(errs, fmt.Errorf("role %s: malformed permission %s", role, p))
				continue
			}
			if !t.AllowsDepartment(p.Department) {
				errs = append(errs, fmt.Errorf("role %s: permission %s outside allowed departments", role, p))
			}
		}
	}
	for r := range templates {
		if !r.Valid() {
			errs = append(errs, fmt.Errorf("template for unknown role %q", r))
		}
	}
	if sa, ok := templates[RoleSuperAdmin]; ok {
		want := len(allDepartments) * len(allResources) * len(allActions)
		if len(sa.Permissions) != want {
			errs = append(errs, fmt.Errorf("super_admin holds %d permissions, want %d", len(sa.Permissions), want))
		}
	}
	for _, r := range allResources {
		if _, ok := resourceInfo[r]; !ok {
			errs = append(errs, fmt.Errorf("resource %s has no metadata", r))
		}
	}
	return errors.Join(errs...)
}
