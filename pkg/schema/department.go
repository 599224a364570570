package schema

// Departments lists the business units an account can belong to.
var Departments = []string{
	"sales",
	"underwriting",
	"claims",
	"marketing",
	"operations",
}

// IsValidDepartment reports whether name is one of Departments. Empty means unassigned and is valid.
func IsValidDepartment(name string) bool {
	if name == "" {
		return true
	}
	for _, d := range Departments {
		if d == name {
			return true
		}
	}
	return false
}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleMember
}
