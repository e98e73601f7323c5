package permission

// Template is the permission grant attached to a role.
type Template struct {
	Role        Role
	Departments []Department
	Permissions Set
	Description string
}

// AllowsDepartment reports whether the role may operate within d.
func (t Template) AllowsDepartment(d Department) bool {
	return contains(t.Departments, d)
}

var (
	operatingDepartments = []Department{
		DepartmentExecutive,
		DepartmentSales,
		DepartmentFinance,
		DepartmentOperations,
		DepartmentSupport,
		DepartmentMarketing,
		DepartmentHR,
		DepartmentIT,
	}
	staffDepartments = []Department{
		DepartmentSales,
		DepartmentFinance,
		DepartmentOperations,
		DepartmentSupport,
		DepartmentMarketing,
		DepartmentHR,
		DepartmentIT,
	}
	crud         = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	readOnly     = []Action{ActionRead}
	contribution = []Action{ActionCreate, ActionRead, ActionUpdate}
)

// templates is built once at init and never mutated afterwards.
var templates = buildTemplates()

func buildTemplates() map[Role]Template {
	t := make(map[Role]Template, len(allRoles))

	superAdmin := make(Set)
	grant(superAdmin, allDepartments, allResources, allActions)
	t[RoleSuperAdmin] = Template{
		Role:        RoleSuperAdmin,
		Departments: AllDepartments(),
		Permissions: superAdmin,
		Description: "Unrestricted access to every department, resource and action",
	}

	admin := make(Set)
	grant(admin, operatingDepartments, allResources, []Action{
		ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionApprove, ActionExport, ActionImport,
	})
	grant(admin, []Department{DepartmentAdmin}, allResources, allActions)
	t[RoleAdmin] = Template{
		Role:        RoleAdmin,
		Departments: AllDepartments(),
		Permissions: admin,
		Description: "Administers users, settings and integrations; manages every department",
	}

	manager := make(Set)
	grant(manager, operatingDepartments, []Resource{
		ResourceClients, ResourceProjects, ResourceTasks, ResourceInvoices, ResourceExpenses,
		ResourceDocuments, ResourceSupportTickets, ResourceKnowledgeBase, ResourceReports,
	}, append(append([]Action(nil), crud...), ActionApprove, ActionExport))
	grant(manager, operatingDepartments, []Resource{ResourceUsers}, readOnly)
	t[RoleManager] = Template{
		Role:        RoleManager,
		Departments: append([]Department(nil), operatingDepartments...),
		Permissions: manager,
		Description: "Runs a department: full work-item control, approvals and exports",
	}

	employee := make(Set)
	grant(employee, staffDepartments, []Resource{
		ResourceClients, ResourceProjects, ResourceTasks, ResourceDocuments,
		ResourceSupportTickets, ResourceKnowledgeBase,
	}, contribution)
	grant(employee, staffDepartments, []Resource{ResourceExpenses}, []Action{ActionCreate, ActionRead})
	grant(employee, staffDepartments, []Resource{ResourceReports}, readOnly)
	grant(employee, []Department{DepartmentSales, DepartmentFinance}, []Resource{ResourceInvoices}, readOnly)
	grant(employee, []Department{DepartmentFinance}, []Resource{ResourceInvoices}, []Action{ActionCreate, ActionUpdate})
	t[RoleEmployee] = Template{
		Role:        RoleEmployee,
		Departments: append([]Department(nil), staffDepartments...),
		Permissions: employee,
		Description: "Day-to-day contributor within their own department",
	}

	contractorDepts := []Department{DepartmentOperations, DepartmentIT}
	contractor := make(Set)
	grant(contractor, contractorDepts, []Resource{ResourceProjects, ResourceDocuments, ResourceKnowledgeBase}, readOnly)
	grant(contractor, contractorDepts, []Resource{ResourceTasks}, []Action{ActionRead, ActionUpdate})
	t[RoleContractor] = Template{
		Role:        RoleContractor,
		Departments: contractorDepts,
		Permissions: contractor,
		Description: "External contributor limited to assigned delivery work",
	}

	viewer := make(Set)
	grant(viewer, operatingDepartments, []Resource{
		ResourceClients, ResourceProjects, ResourceTasks, ResourceDocuments,
		ResourceReports, ResourceKnowledgeBase,
	}, readOnly)
	t[RoleViewer] = Template{
		Role:        RoleViewer,
		Departments: append([]Department(nil), operatingDepartments...),
		Permissions: viewer,
		Description: "Read-only access to non-sensitive business data",
	}

	clientDepts := []Department{DepartmentSupport}
	client := make(Set)
	grant(client, clientDepts, []Resource{ResourceSupportTickets}, contribution)
	grant(client, clientDepts, []Resource{ResourceKnowledgeBase, ResourceInvoices, ResourceProjects}, readOnly)
	t[RoleClient] = Template{
		Role:        RoleClient,
		Departments: clientDepts,
		Permissions: client,
		Description: "Customer portal access: tickets, invoices and published articles",
	}

	return t
}

func grant(s Set, depts []Department, resources []Resource, actions []Action) {
	for _, d := range depts {
		for _, r := range resources {
			for _, a := range actions {
				s.Add(New(d, r, a))
			}
		}
	}
}

// TemplateFor returns a copy of the template for role.
func TemplateFor(role Role) (Template, bool) {
	t, ok := templates[role]
	if !ok {
		return Template{}, false
	}
	t.Departments = append([]Department(nil), t.Departments...)
	t.Permissions = t.Permissions.Clone()
	return t, true
}

// Templates returns copies of every template in role declaration order.
func Templates() []Template {
	out := make([]Template, 0, len(allRoles))
	for _, r := range allRoles {
		if t, ok := TemplateFor(r); ok {
			out = append(out, t)
		}
	}
	return out
}
