package shared

// Permission modules known to the platform.
const (
	ModuleSchools    = "schools"
	ModuleClasses    = "classes"
	ModuleStudents   = "students"
	ModuleAttendance = "attendance"
	ModuleFees       = "fees"
	ModuleUsers      = "users"
	ModuleRoles      = "roles"
	ModuleAudit      = "audit"
	ModuleReports    = "reports"
)

// Permission actions.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
	ActionManage = "manage"
)

// RoleSuperAdmin is the system-wide role whose holders see every school.
const RoleSuperAdmin = "super_admin"
