package paginate

import (
	"errors"
	"testing"
	"time"

	"github.com/stewardhq/steward/internal/errdomain"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	createTime := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)
	uid := "2a06c2f7-8da9-4046-91ea-240f88a5d729"

	token := EncodeToken(createTime, uid)
	gotTime, gotUID, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotTime.Equal(createTime) {
		t.Errorf("time = %v, want %v", gotTime, createTime)
	}
	if gotUID != uid {
		t.Errorf("uid = %q, want %q", gotUID, uid)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	cases := []string{
		"not-base64!!",
		"aGVsbG8=",         // valid base64, no separator
		"fm9wZXxub3BlfDQ=", // separator present, not a timestamp
	}
	for _, token := range cases {
		_, _, err := DecodeToken(token)
		if err == nil {
			t.Errorf("DecodeToken(%q) = nil, want error", token)
			continue
		}
		if !errors.Is(err, errdomain.ErrInvalidArgument) {
			t.Errorf("DecodeToken(%q) error = %v, want ErrInvalidArgument", token, err)
		}
	}
}

func TestTrimPage(t *testing.T) {
	cursor := func(s string) string { return "after-" + s }

	tests := []struct {
		name      string
		records   []string
		limit     int
		wantLen   int
		wantToken string
	}{
		{name: "short page", records: []string{"a"}, limit: 5, wantLen: 1},
		{name: "exactly full page", records: []string{"a", "b", "c"}, limit: 3, wantLen: 3},
		{name: "probe row present", records: []string{"a", "b", "c", "d"}, limit: 3, wantLen: 3, wantToken: "after-c"},
		{name: "unbounded", records: []string{"a", "b", "c"}, limit: 0, wantLen: 3},
		{name: "empty", records: nil, limit: 5, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, token := TrimPage(tt.records, tt.limit, cursor)
			if len(page) != tt.wantLen {
				t.Errorf("len(page) = %d, want %d", len(page), tt.wantLen)
			}
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if _, err := Clamp(-1); !errors.Is(err, errdomain.ErrInvalidArgument) {
		t.Errorf("negative size error = %v, want ErrInvalidArgument", err)
	}

	// Zero means unbounded, not "return nothing".
	if n, err := Clamp(0); err != nil || n != 0 {
		t.Errorf("Clamp(0) = %d, %v", n, err)
	}
	if n, _ := Clamp(5); n != 5 {
		t.Errorf("Clamp(5) = %d", n)
	}
	if n, _ := Clamp(MaxPageSize + 50); n != MaxPageSize {
		t.Errorf("Clamp over max = %d, want %d", n, MaxPageSize)
	}
}
