package permission

import "sort"

// Set is a collection of permission triples.
type Set map[Permission]struct{}

// NewSet builds a set from the given permissions.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports exact membership.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Add inserts p.
func (s Set) Add(p Permission) { s[p] = struct{}{} }

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Sorted returns the permissions ordered by their canonical string.
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Strings returns the sorted canonical strings.
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = p.String()
	}
	return out
}

// Resources returns the distinct resources present in the set, sorted.
func (s Set) Resources() []Resource {
	seen := make(map[Resource]struct{})
	for p := range s {
		seen[p.Resource] = struct{}{}
	}
	out := make([]Resource, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Allows is the route-level check against a resolved set: the triple in dept,
// or the same resource/action in the admin department. Only admin templates
// and explicit grants place permissions in the admin department.
func (s Set) Allows(dept Department, resource Resource, action Action) bool {
	return s.Has(New(dept, resource, action)) || s.Has(New(DepartmentAdmin, resource, action))
}
