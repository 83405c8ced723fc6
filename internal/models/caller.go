package models

// Portal roles carried in access tokens
const (
	RoleStudent     = "student"
	RoleParent      = "parent"
	RoleTeacher     = "teacher"
	RoleSchoolAdmin = "school_admin"
	RoleSuperAdmin  = "superadmin"
)

// Caller is the authenticated identity a request acts as
type Caller struct {
	UserID   string
	SchoolID string
	Roles    []string
}

// HasRole reports whether the caller holds role
func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanAdminister reports whether the caller may manage a school's inventory
func (c Caller) CanAdminister(schoolID string) bool {
	if c.HasRole(RoleSuperAdmin) {
		return true
	}
	return c.HasRole(RoleSchoolAdmin) && c.SchoolID == schoolID
}
