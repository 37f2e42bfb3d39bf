package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionAdmin, true},
		{RoleAdmin, ActionModerate, true},
		{RoleModerator, ActionModerate, true},
		{RoleModerator, ActionAdmin, false},
		{RoleViewer, ActionRead, true},
		{RoleViewer, ActionSubmit, true},
		{RoleViewer, ActionModerate, false},
		{Role("unknown"), ActionRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Errorf("expected admin to normalize to admin")
	}
	if Normalize("superuser") != RoleViewer {
		t.Errorf("unknown roles must normalize to viewer")
	}
}
