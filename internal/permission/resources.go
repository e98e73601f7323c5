package permission

// ResourceInfo is the static metadata attached to each resource.
type ResourceInfo struct {
	Description      string `json:"description"`
	Sensitive        bool   `json:"sensitive"`
	AuditRequired    bool   `json:"audit_required"`
	RequiresApproval bool   `json:"requires_approval"`
}

var resourceInfo = map[Resource]ResourceInfo{
	ResourceUsers:          {Description: "User accounts and profiles", Sensitive: true, AuditRequired: true},
	ResourceRoles:          {Description: "Role assignments and permission templates", Sensitive: true, AuditRequired: true, RequiresApproval: true},
	ResourceClients:        {Description: "Client organizations and contacts", AuditRequired: true},
	ResourceProjects:       {Description: "Client projects and milestones"},
	ResourceTasks:          {Description: "Project tasks and assignments"},
	ResourceInvoices:       {Description: "Invoices and payment records", Sensitive: true, AuditRequired: true, RequiresApproval: true},
	ResourceExpenses:       {Description: "Expense claims and reimbursements", Sensitive: true, AuditRequired: true, RequiresApproval: true},
	ResourceDocuments:      {Description: "Shared documents and attachments"},
	ResourceSupportTickets: {Description: "Customer support tickets"},
	ResourceKnowledgeBase:  {Description: "Knowledge base articles"},
	ResourceReports:        {Description: "Dashboards and business reports", AuditRequired: true},
	ResourceIntegrations:   {Description: "Third-party integration credentials and hooks", Sensitive: true, AuditRequired: true},
	ResourceAuditLogs:      {Description: "Security and activity audit trail", Sensitive: true, AuditRequired: true},
	ResourceSystemSettings: {Description: "Global system configuration", Sensitive: true, AuditRequired: true, RequiresApproval: true},
}

// Info returns the metadata for r.
func Info(r Resource) (ResourceInfo, bool) {
	info, ok := resourceInfo[r]
	return info, ok
}

// Describe returns the human description of r, or "" for unknown resources.
func Describe(r Resource) string { return resourceInfo[r].Description }

// RequiresAuditLog reports whether access to r must be audit logged.
func RequiresAuditLog(r Resource) bool { return resourceInfo[r].AuditRequired }

// IsSensitiveResource reports whether r holds sensitive data.
func IsSensitiveResource(r Resource) bool { return resourceInfo[r].Sensitive }

// RequiresApproval reports whether changes to r need approval.
func RequiresApproval(r Resource) bool { return resourceInfo[r].RequiresApproval }
