package namespace

import (
	"errors"
	"testing"

	"github.com/stewardhq/steward/internal/errdomain"
)

func strPtr(s string) *string { return &s }

func TestValidateRole(t *testing.T) {
	for _, r := range AllowedRoles {
		if err := ValidateRole(r); err != nil {
			t.Errorf("ValidateRole(%q) = %v, want nil", r, err)
		}
	}
	if err := ValidateRole(""); err != nil {
		t.Errorf("empty role should be allowed, got %v", err)
	}
	if err := ValidateRole("non-exist-role"); !errors.Is(err, errdomain.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateInputValidate(t *testing.T) {
	valid := CreateInput{ID: "alice", Email: "alice@example.com"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]CreateInput{
		"missing email": {ID: "alice"},
		"uuid id":       {ID: "2a06c2f7-8da9-4046-91ea-240f88a5d729", Email: "a@b.c"},
		"bad type":      {ID: "alice", Email: "a@b.c", Type: "OWNER_TYPE_ROBOT"},
		"bad role":      {ID: "alice", Email: "a@b.c", Role: "Supreme Leader"},
	}
	for name, in := range cases {
		if err := in.Validate(); !errors.Is(err, errdomain.ErrInvalidArgument) {
			t.Errorf("%s: error = %v, want ErrInvalidArgument", name, err)
		}
	}
}

func TestUpdateMaskExplicitRejectsImmutable(t *testing.T) {
	for _, raw := range []string{"id", "uid", "name", "create_time", "email,id"} {
		_, err := UpdateMask(raw, Patch{}, false)
		if !errors.Is(err, errdomain.ErrInvalidArgument) {
			t.Errorf("UpdateMask(%q) error = %v, want ErrInvalidArgument", raw, err)
		}
	}
}

func TestUpdateMaskTypePolicy(t *testing.T) {
	// Under the default policy, type is immutable.
	if _, err := UpdateMask("type", Patch{}, false); !errors.Is(err, errdomain.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
	// With the policy flag flipped, a type change is a regular update.
	mask, err := UpdateMask("type", Patch{}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mask.Contains("type") {
		t.Error("mask should contain type")
	}
}

func TestUpdateMaskStripsServerComputed(t *testing.T) {
	mask, err := UpdateMask("email,update_time,customer_id", Patch{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mask.Contains("update_time") || mask.Contains("customer_id") {
		t.Error("server-computed fields must be stripped from the mask")
	}
	if !mask.Contains("email") {
		t.Error("email should survive")
	}
}

func TestUpdateMaskImpliedIgnoresServerOwnedKeys(t *testing.T) {
	// The "restore to defaults" pattern echoes the full record back with no
	// explicit mask; server-owned keys must be dropped, not rejected.
	body := Patch{
		Name:       strPtr("users/instill"),
		UID:        strPtr("2a06c2f7-8da9-4046-91ea-240f88a5d729"),
		ID:         strPtr("instill"),
		Email:      strPtr("hello@example.com"),
		CreateTime: strPtr("2000-01-01T00:00:00Z"),
		UpdateTime: strPtr("2000-01-01T00:00:00Z"),
	}
	mask, err := UpdateMask("", body, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range []string{"name", "uid", "id", "create_time", "update_time"} {
		if mask.Contains(p) {
			t.Errorf("implied mask must not contain %q", p)
		}
	}
	if !mask.Contains("email") {
		t.Error("email should survive in implied mask")
	}
}

func TestUpdateMaskUnknownField(t *testing.T) {
	if _, err := UpdateMask("emial", Patch{}, false); !errors.Is(err, errdomain.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestApply(t *testing.T) {
	ns := Namespace{
		ID:    "alice",
		Type:  TypeUser,
		Email: "old@example.com",
		Role:  RoleHobbyist,
	}

	role := RoleManager
	newsletter := true
	patch := Patch{
		Email:                  strPtr("new@example.com"),
		Role:                   &role,
		NewsletterSubscription: &newsletter,
		Profile:                &ProfilePatch{DisplayName: strPtr("Alice")},
	}
	mask, err := UpdateMask("", patch, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := Apply(&ns, patch, mask); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns.Email != "new@example.com" || ns.Role != RoleManager || !ns.NewsletterSubscription {
		t.Errorf("patch not applied: %+v", ns)
	}
	if ns.Profile.DisplayName != "Alice" {
		t.Errorf("profile not applied: %+v", ns.Profile)
	}
	// Unmasked fields retain prior values.
	if ns.ID != "alice" || ns.Type != TypeUser {
		t.Errorf("unmasked fields changed: %+v", ns)
	}
}

func TestApplyOnlyMaskedFields(t *testing.T) {
	ns := Namespace{Email: "old@example.com", Role: RoleHobbyist}

	role := RoleManager
	patch := Patch{Email: strPtr("new@example.com"), Role: &role}
	mask, _ := UpdateMask("email", Patch{}, false)

	if err := Apply(&ns, patch, mask); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns.Email != "new@example.com" {
		t.Error("masked field not applied")
	}
	if ns.Role != RoleHobbyist {
		t.Error("field absent from mask must be ignored")
	}
}

func TestApplyRejectsUnknownRole(t *testing.T) {
	ns := Namespace{Role: RoleHobbyist}
	bad := Role("non-exist-role")
	patch := Patch{Role: &bad}
	mask, _ := UpdateMask("role", Patch{}, false)

	err := Apply(&ns, patch, mask)
	if !errors.Is(err, errdomain.ErrInvalidArgument) {
		t.Fatalf("error = %v, want ErrInvalidArgument", err)
	}
	if ns.Role != RoleHobbyist {
		t.Error("record must be unchanged after a rejected update")
	}
}
