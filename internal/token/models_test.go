package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stewardhq/steward/internal/errdomain"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCreateInputValidate(t *testing.T) {
	if err := (CreateInput{ID: "test-token", TTL: int64Ptr(86400)}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (CreateInput{ID: "forever", TTL: int64Ptr(NonExpiringTTL)}).Validate(); err != nil {
		t.Fatalf("non-expiring ttl rejected: %v", err)
	}

	cases := map[string]CreateInput{
		"missing ttl": {ID: "test-token"},
		"ttl too low": {ID: "test-token", TTL: int64Ptr(-2)},
		"uuid id":     {ID: "2a06c2f7-8da9-4046-91ea-240f88a5d729", TTL: int64Ptr(60)},
		"empty id":    {TTL: int64Ptr(60)},
	}
	for name, in := range cases {
		if err := in.Validate(); !errors.Is(err, errdomain.ErrInvalidArgument) {
			t.Errorf("%s: error = %v, want ErrInvalidArgument", name, err)
		}
	}
}

func TestExpireTimeFor(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if got := ExpireTimeFor(3600, now); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpireTimeFor(3600) = %v", got)
	}
	if got := ExpireTimeFor(NonExpiringTTL, now); got.Year() < 2099 {
		t.Errorf("non-expiring ttl should map far into the future, got %v", got)
	}
}

func TestEffectiveState(t *testing.T) {
	now := time.Now().UTC()

	active := Token{State: StateActive, ExpireTime: now.Add(time.Hour)}
	if got := active.EffectiveState(now); got != StateActive {
		t.Errorf("state = %q, want active", got)
	}

	expired := Token{State: StateActive, ExpireTime: now.Add(-time.Hour)}
	if got := expired.EffectiveState(now); got != StateExpired {
		t.Errorf("state = %q, want expired", got)
	}

	// Inactive tokens stay inactive even past expiry.
	inactive := Token{State: StateInactive, ExpireTime: now.Add(-time.Hour)}
	if got := inactive.EffectiveState(now); got != StateInactive {
		t.Errorf("state = %q, want inactive", got)
	}
}

func TestGenerateSecret(t *testing.T) {
	plaintext, hash, prefix, err := GenerateSecret()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(plaintext, "stw_") {
		t.Errorf("secret %q missing stw_ prefix", plaintext)
	}
	if len(plaintext) != len("stw_")+32 {
		t.Errorf("secret length = %d", len(plaintext))
	}
	if hash != HashSecret(plaintext) {
		t.Error("hash does not match plaintext")
	}
	if prefix != plaintext[:12] {
		t.Errorf("prefix = %q", prefix)
	}

	other, _, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other == plaintext {
		t.Error("two generated secrets must differ")
	}
}
