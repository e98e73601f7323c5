// Package permission holds the static department-scoped permission matrix:
// departments, resources, actions, role templates and resource metadata.
// Every function in this package is pure and total; a missing mapping means
// "no permission" and is never reported as an error.
package permission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownValue is returned by the Parse helpers for values outside the closed sets.
var ErrUnknownValue = errors.New("permission: unknown value")

// Department is an organizational boundary permissions are scoped to.
type Department string

const (
	DepartmentExecutive  Department = "executive"
	DepartmentSales      Department = "sales"
	DepartmentFinance    Department = "finance"
	DepartmentOperations Department = "operations"
	DepartmentSupport    Department = "support"
	DepartmentMarketing  Department = "marketing"
	DepartmentHR         Department = "hr"
	DepartmentIT         Department = "it"
	DepartmentAdmin      Department = "admin"
)

var allDepartments = []Department{
	DepartmentExecutive,
	DepartmentSales,
	DepartmentFinance,
	DepartmentOperations,
	DepartmentSupport,
	DepartmentMarketing,
	DepartmentHR,
	DepartmentIT,
	DepartmentAdmin,
}

// Action is a verb that can be performed on a resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionAdmin   Action = "admin"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
	ActionImport  Action = "import"
)

var allActions = []Action{
	ActionCreate,
	ActionRead,
	ActionUpdate,
	ActionDelete,
	ActionAdmin,
	ActionApprove,
	ActionExport,
	ActionImport,
}

// Resource is a business-domain noun guarded by the permission matrix.
type Resource string

const (
	ResourceUsers          Resource = "users"
	ResourceRoles          Resource = "roles"
	ResourceClients        Resource = "clients"
	ResourceProjects       Resource = "projects"
	ResourceTasks          Resource = "tasks"
	ResourceInvoices       Resource = "invoices"
	ResourceExpenses       Resource = "expenses"
	ResourceDocuments      Resource = "documents"
	ResourceSupportTickets Resource = "support_tickets"
	ResourceKnowledgeBase  Resource = "knowledge_base"
	ResourceReports        Resource = "reports"
	ResourceIntegrations   Resource = "integrations"
	ResourceAuditLogs      Resource = "audit_logs"
	ResourceSystemSettings Resource = "system_settings"
)

var allResources = []Resource{
	ResourceUsers,
	ResourceRoles,
	ResourceClients,
	ResourceProjects,
	ResourceTasks,
	ResourceInvoices,
	ResourceExpenses,
	ResourceDocuments,
	ResourceSupportTickets,
	ResourceKnowledgeBase,
	ResourceReports,
	ResourceIntegrations,
	ResourceAuditLogs,
	ResourceSystemSettings,
}

// Role is the enhanced user role; each role maps to exactly one Template.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleEmployee   Role = "employee"
	RoleContractor Role = "contractor"
	RoleViewer     Role = "viewer"
	RoleClient     Role = "client"
)

var allRoles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleManager,
	RoleEmployee,
	RoleContractor,
	RoleViewer,
	RoleClient,
}

// AllDepartments returns every department in declaration order.
func AllDepartments() []Department { return append([]Department(nil), allDepartments...) }

// AllActions returns every action in declaration order.
func AllActions() []Action { return append([]Action(nil), allActions...) }

// AllResources returns every resource in declaration order.
func AllResources() []Resource { return append([]Resource(nil), allResources...) }

// AllRoles returns every role in declaration order.
func AllRoles() []Role { return append([]Role(nil), allRoles...) }

func (d Department) Valid() bool { return contains(allDepartments, d) }
func (a Action) Valid() bool     { return contains(allActions, a) }
func (r Resource) Valid() bool   { return contains(allResources, r) }
func (r Role) Valid() bool       { return contains(allRoles, r) }

// ParseDepartment normalizes and validates a department name.
func ParseDepartment(s string) (Department, error) {
	d := Department(normalize(s))
	if !d.Valid() {
		return "", fmt.Errorf("%w: department %q", ErrUnknownValue, s)
	}
	return d, nil
}

// ParseAction normalizes and validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(normalize(s))
	if !a.Valid() {
		return "", fmt.Errorf("%w: action %q", ErrUnknownValue, s)
	}
	return a, nil
}

// ParseResource normalizes and validates a resource name.
func ParseResource(s string) (Resource, error) {
	r := Resource(normalize(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: resource %q", ErrUnknownValue, s)
	}
	return r, nil
}

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(normalize(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: role %q", ErrUnknownValue, s)
	}
	return r, nil
}

// Permission is an immutable (department, resource, action) triple.
type Permission struct {
	Department Department
	Resource   Resource
	Action     Action
}

// New builds a Permission triple.
func New(d Department, r Resource, a Action) Permission {
	return Permission{Department: d, Resource: r, Action: a}
}

// String renders the canonical department:resource:action form.
func (p Permission) String() string {
	return string(p.Department) + ":" + string(p.Resource) + ":" + string(p.Action)
}

// MarshalText implements encoding.TextMarshaler so permissions encode as their canonical string.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(b []byte) error {
	parsed, err := ParsePermission(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePermission parses the canonical string form. All three parts are required
// and validated; there is no wildcard or partial matching.
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Permission{}, fmt.Errorf("%w: permission %q", ErrUnknownValue, s)
	}
	d, err := ParseDepartment(parts[0])
	if err != nil {
		return Permission{}, err
	}
	r, err := ParseResource(parts[1])
	if err != nil {
		return Permission{}, err
	}
	a, err := ParseAction(parts[2])
	if err != nil {
		return Permission{}, err
	}
	return New(d, r, a), nil
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
