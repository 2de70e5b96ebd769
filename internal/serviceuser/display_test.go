package serviceuser

import "testing"

func TestStateLabel(t *testing.T) {
	if got := StateLabel(nil); got != NotFound {
		t.Fatalf("nil user: got %q", got)
	}
	active := &ServiceUserInfo{}
	if got := StateLabel(active); got != "Active" {
		t.Fatalf("active user: got %q", got)
	}
	inactive := &ServiceUserInfo{AccountInfo: AccountInfo{Inactive: true}}
	if got := StateLabel(inactive); got != "Inactive" {
		t.Fatalf("inactive user: got %q", got)
	}
}

func TestCreatorLabelPrefersUsername(t *testing.T) {
	u := &ServiceUserInfo{CreatedBy: &AccountInfo{AccountID: 1000001, Username: "admin"}}
	if got := CreatorLabel(u); got != "admin" {
		t.Fatalf("got %q", got)
	}
}

func TestCreatorLabelFallsBackToAccountID(t *testing.T) {
	u := &ServiceUserInfo{CreatedBy: &AccountInfo{AccountID: 1000001}}
	if got := CreatorLabel(u); got != "1000001" {
		t.Fatalf("got %q", got)
	}
}

func TestCreatorLabelMissingRecordOrSentinel(t *testing.T) {
	if got := CreatorLabel(&ServiceUserInfo{}); got != NotFound {
		t.Fatalf("missing created_by: got %q", got)
	}
	// Gerrit reports an unknown creator with the -1 sentinel id.
	u := &ServiceUserInfo{CreatedBy: &AccountInfo{AccountID: -1}}
	if got := CreatorLabel(u); got != NotFound {
		t.Fatalf("sentinel id: got %q", got)
	}
}

func TestOwnerLabel(t *testing.T) {
	if got := OwnerLabel(&ServiceUserInfo{}); got != NotFound {
		t.Fatalf("owner-less: got %q", got)
	}
	u := &ServiceUserInfo{Owner: &GroupInfo{Name: "Administrators"}}
	if got := OwnerLabel(u); got != "Administrators" {
		t.Fatalf("got %q", got)
	}
}

func TestPermissionsDerivation(t *testing.T) {
	caps := CapabilityInfo{CapAdministrateServer: nil}
	p := caps.Permissions()
	if !p.IsAdmin || !p.CanCreate {
		t.Fatalf("admin should imply create: %+v", p)
	}

	caps = CapabilityInfo{CapCreateServiceUser: nil}
	p = caps.Permissions()
	if p.IsAdmin || !p.CanCreate {
		t.Fatalf("create capability without admin: %+v", p)
	}

	p = CapabilityInfo{}.Permissions()
	if p.IsAdmin || p.CanCreate {
		t.Fatalf("no capabilities: %+v", p)
	}
}

func TestMergeAdminOverridesConfig(t *testing.T) {
	cfg := &ConfigInfo{AllowEmail: true}
	f := Merge(cfg, Permissions{})
	if !f.Email || f.Owner || f.HTTPPassword {
		t.Fatalf("config flags only: %+v", f)
	}

	f = Merge(cfg, Permissions{IsAdmin: true})
	if !f.Email || !f.Owner || !f.HTTPPassword {
		t.Fatalf("admin override: %+v", f)
	}

	f = Merge(nil, Permissions{IsAdmin: true})
	if !f.Email || !f.Owner || !f.HTTPPassword {
		t.Fatalf("nil config with admin: %+v", f)
	}
}
