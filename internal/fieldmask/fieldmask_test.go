package fieldmask

import (
	"errors"
	"testing"

	"github.com/stewardhq/steward/internal/errdomain"
)

func TestParse(t *testing.T) {
	m, err := Parse("email, profile.display_name,role")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range []string{"email", "profile.display_name", "role"} {
		if !m.Contains(p) {
			t.Errorf("mask missing %q", p)
		}
	}
	if m.Contains("id") {
		t.Error("mask should not contain id")
	}
}

func TestParseRejectsEmptyPath(t *testing.T) {
	for _, raw := range []string{"", "email,,role", ","} {
		if _, err := Parse(raw); !errors.Is(err, errdomain.ErrInvalidArgument) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidArgument", raw, err)
		}
	}
}

func TestWithout(t *testing.T) {
	m := FromKeys([]string{"email", "name", "update_time"})
	stripped := m.Without("name", "update_time")
	if stripped.Contains("name") || stripped.Contains("update_time") {
		t.Error("output-only fields not stripped")
	}
	if !stripped.Contains("email") {
		t.Error("email should remain")
	}
	// Original mask is untouched.
	if !m.Contains("name") {
		t.Error("Without must not mutate the receiver")
	}
}

func TestCheckImmutable(t *testing.T) {
	m := FromKeys([]string{"email", "uid"})
	err := CheckImmutable(m, []string{"uid", "create_time"})
	if !errors.Is(err, errdomain.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}

	if err := CheckImmutable(FromKeys([]string{"email"}), []string{"uid"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckKnown(t *testing.T) {
	known := []string{"email", "role"}
	if err := CheckKnown(FromKeys([]string{"email"}), known); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckKnown(FromKeys([]string{"emial"}), known); !errors.Is(err, errdomain.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}
