package models

// Role is one of the closed set of account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var Roles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Capability names an action guarded by role.
type Capability string

const (
	ManageTours     Capability = "tours:manage"
	ViewMonthlyPlan Capability = "tours:monthly-plan"
	LeadTours       Capability = "tours:guide"
	WriteReviews    Capability = "reviews:write"
	EditReviews     Capability = "reviews:edit"
	ManageUsers     Capability = "users:manage"
)

// Permissions is the role to capability table every route restriction is
// derived from.
var Permissions = map[Role][]Capability{
	RoleUser:      {WriteReviews, EditReviews},
	RoleGuide:     {ViewMonthlyPlan, LeadTours},
	RoleLeadGuide: {ManageTours, ViewMonthlyPlan, LeadTours},
	RoleAdmin:     {ManageTours, ViewMonthlyPlan, EditReviews, ManageUsers},
}

// Can reports whether r holds c.
func (r Role) Can(c Capability) bool {
	for _, have := range Permissions[r] {
		if have == c {
			return true
		}
	}
	return false
}

// RolesWith lists the roles holding c, in declaration order.
func RolesWith(c Capability) []Role {
	var out []Role
	for _, r := range Roles {
		if r.Can(c) {
			out = append(out, r)
		}
	}
	return out
}
