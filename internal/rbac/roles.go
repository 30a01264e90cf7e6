package rbac

// Role is a named permission group. Exactly three roles exist, in a fixed
// bijection with their numeric backend identifiers.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSupporter Role = "supporter"
	RoleUser      Role = "user"
)

const (
	RoleIDAdmin     = 15
	RoleIDSupporter = 8
	RoleIDUser      = 1
)

var roleToID = map[Role]int{
	RoleAdmin:     RoleIDAdmin,
	RoleSupporter: RoleIDSupporter,
	RoleUser:      RoleIDUser,
}

var idToRole = map[int]Role{
	RoleIDAdmin:     RoleAdmin,
	RoleIDSupporter: RoleSupporter,
	RoleIDUser:      RoleUser,
}

// rolePermissions is the hand-maintained role → capability table. The
// admin row must stay the full closed set; route guards rely on an admin
// never being denied.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermCreateTicket, PermViewOwnTickets, PermViewAllTickets,
		PermEditTicket, PermDeleteTicket, PermAssignTicket,
		PermChangeStatus, PermChangePriority, PermCommentTicket,
		PermViewInternalNotes, PermAddUser, PermEditUser, PermDeleteUser,
		PermManageCategory, PermManageSettings, PermViewReports,
		PermExportData, PermManageRoles, PermViewDashboard,
		PermManageNotifications,
	},
	RoleSupporter: {
		PermCreateTicket, PermViewOwnTickets, PermViewAllTickets,
		PermEditTicket, PermAssignTicket, PermChangeStatus,
		PermChangePriority, PermCommentTicket, PermViewInternalNotes,
		PermViewReports, PermViewDashboard,
	},
	RoleUser: {
		PermCreateTicket, PermViewOwnTickets, PermCommentTicket,
		PermViewDashboard,
	},
}

// Known reports whether r is one of the three defined roles.
func (r Role) Known() bool {
	_, ok := roleToID[r]
	return ok
}
