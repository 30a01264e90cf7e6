package rbac

// Permission is a fine-grained capability. The set is closed: the backend
// may only grant values listed here, anything else is dropped at the
// boundary.
type Permission int

const (
	PermCreateTicket        Permission = 1
	PermViewOwnTickets      Permission = 2
	PermViewAllTickets      Permission = 3
	PermEditTicket          Permission = 4
	PermDeleteTicket        Permission = 5
	PermAssignTicket        Permission = 6
	PermChangeStatus        Permission = 7
	PermChangePriority      Permission = 8
	PermCommentTicket       Permission = 9
	PermViewInternalNotes   Permission = 10
	PermAddUser             Permission = 11
	PermEditUser            Permission = 12
	PermDeleteUser          Permission = 13
	PermManageCategory      Permission = 14
	PermManageSettings      Permission = 15
	PermViewReports         Permission = 16
	PermExportData          Permission = 17
	PermManageRoles         Permission = 18
	PermViewDashboard       Permission = 19
	PermManageNotifications Permission = 20
)

var permissionNames = map[Permission]string{
	PermCreateTicket:        "ticket.create",
	PermViewOwnTickets:      "ticket.view_own",
	PermViewAllTickets:      "ticket.view_all",
	PermEditTicket:          "ticket.edit",
	PermDeleteTicket:        "ticket.delete",
	PermAssignTicket:        "ticket.assign",
	PermChangeStatus:        "ticket.change_status",
	PermChangePriority:      "ticket.change_priority",
	PermCommentTicket:       "ticket.comment",
	PermViewInternalNotes:   "ticket.view_internal_notes",
	PermAddUser:             "user.add",
	PermEditUser:            "user.edit",
	PermDeleteUser:          "user.delete",
	PermManageCategory:      "category.manage",
	PermManageSettings:      "settings.manage",
	PermViewReports:         "report.view",
	PermExportData:          "data.export",
	PermManageRoles:         "role.manage",
	PermViewDashboard:       "dashboard.view",
	PermManageNotifications: "notification.manage",
}

// Known reports whether p belongs to the closed permission set.
func (p Permission) Known() bool {
	_, ok := permissionNames[p]
	return ok
}

// String returns the capability key, or "unknown" for values outside the
// closed set.
func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "unknown"
}
