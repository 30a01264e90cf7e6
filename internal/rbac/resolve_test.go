package rbac

import (
	"testing"
)

func TestNormalizePermissionsDropsUnknownAndDuplicates(t *testing.T) {
	got := NormalizePermissions([]int{7, 99, 3, 7, 0, -1, 21, 20})
	want := []Permission{PermViewAllTickets, PermChangeStatus, PermManageNotifications}
	if len(got) != len(want) {
		t.Fatalf("unexpected set: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected set: %v", got)
		}
	}
}

func TestRoleConversionRoundTrip(t *testing.T) {
	cases := [][]Role{
		{RoleAdmin},
		{RoleSupporter, RoleUser},
		{RoleAdmin, RoleSupporter, RoleUser},
		nil,
	}
	for _, roles := range cases {
		back := RoleIDsToNames(RoleNamesToIDs(roles))
		if len(back) != len(roles) {
			t.Fatalf("round trip changed cardinality: %v -> %v", roles, back)
		}
		for i := range roles {
			if back[i] != roles[i] {
				t.Fatalf("round trip changed set: %v -> %v", roles, back)
			}
		}
	}

	ids := []int{RoleIDAdmin, RoleIDUser}
	backIDs := RoleNamesToIDs(RoleIDsToNames(ids))
	if len(backIDs) != 2 || backIDs[0] != RoleIDAdmin || backIDs[1] != RoleIDUser {
		t.Fatalf("id round trip changed set: %v -> %v", ids, backIDs)
	}
}

func TestRoleConversionDropsUnknown(t *testing.T) {
	if got := RoleIDsToNames([]int{15, 42, 8}); len(got) != 2 {
		t.Fatalf("expected unknown id dropped: %v", got)
	}
	if got := RoleNamesToIDs([]Role{RoleAdmin, Role("owner")}); len(got) != 1 {
		t.Fatalf("expected unknown name dropped: %v", got)
	}
}

func TestEffectiveIsSuperset(t *testing.T) {
	explicit := []Permission{PermExportData}
	roles := []Role{RoleSupporter}
	roleIDs := []int{RoleIDUser}

	eff := Effective(explicit, roles, roleIDs)

	for _, p := range explicit {
		if !HasPermission(eff, p) {
			t.Fatalf("effective set missing explicit %v", p)
		}
	}
	for _, p := range PermissionsForRoles(roles) {
		if !HasPermission(eff, p) {
			t.Fatalf("effective set missing role-implied %v", p)
		}
	}
	for _, p := range PermissionsForRoleIDs(roleIDs) {
		if !HasPermission(eff, p) {
			t.Fatalf("effective set missing id-implied %v", p)
		}
	}
}

func TestEffectiveHonorsRoleOnlyPermission(t *testing.T) {
	// backend omitted the explicit list entirely; a supporter capability
	// must still be honored
	eff := Effective(nil, []Role{RoleSupporter}, nil)
	if !HasPermission(eff, PermChangeStatus) {
		t.Fatal("supporter lost ticket.change_status")
	}
	if HasPermission(eff, PermManageSettings) {
		t.Fatal("supporter gained settings.manage")
	}
}

func TestAdminRoleImpliesFullSet(t *testing.T) {
	eff := Effective(nil, nil, []int{RoleIDAdmin})
	if len(eff) != len(permissionNames) {
		t.Fatalf("admin effective set incomplete: %d of %d", len(eff), len(permissionNames))
	}
}

func TestInferRoles(t *testing.T) {
	tests := []struct {
		name  string
		perms []Permission
		want  Role
	}{
		{"admin triple", []Permission{PermAddUser, PermDeleteUser, PermManageCategory}, RoleAdmin},
		{"supporter pair", []Permission{PermViewAllTickets, PermChangeStatus}, RoleSupporter},
		{"minimal default", []Permission{PermCreateTicket}, RoleUser},
		{"empty", nil, RoleUser},
		{"partial admin falls through", []Permission{PermAddUser, PermDeleteUser}, RoleUser},
	}
	for _, tc := range tests {
		got := InferRoles(tc.perms)
		if len(got) != 1 || got[0] != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCheckAccess(t *testing.T) {
	perms := []Permission{PermCreateTicket, PermViewDashboard}
	roles := []Role{RoleUser}

	if !CheckAccess(perms, roles, nil, nil, false) {
		t.Fatal("no requirements must permit")
	}
	if !CheckAccess(perms, roles, nil, nil, true) {
		t.Fatal("no requirements must permit even with requireAll")
	}
	if !CheckAccess(perms, roles, []Permission{PermCreateTicket, PermDeleteUser}, nil, false) {
		t.Fatal("any-of with one held permission must permit")
	}
	if CheckAccess(perms, roles, []Permission{PermCreateTicket, PermDeleteUser}, nil, true) {
		t.Fatal("all-of with one missing permission must deny")
	}
	if !CheckAccess(perms, roles, nil, []Role{RoleAdmin, RoleUser}, false) {
		t.Fatal("any-of role must permit")
	}
	if CheckAccess(perms, roles, []Permission{PermDeleteUser}, []Role{RoleAdmin}, false) {
		t.Fatal("nothing held must deny")
	}
}
