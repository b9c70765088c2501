package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/auth"
)

func TestLimiter_AllowWithinLimit(t *testing.T) {
	l := New(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Allow("caller-1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("caller-1") {
		t.Error("request 6 should be rejected")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)

	if !l.Allow("caller-1") {
		t.Fatal("first request for caller-1 should be allowed")
	}
	if l.Allow("caller-1") {
		t.Error("second request for caller-1 should be rejected")
	}
	if !l.Allow("caller-2") {
		t.Error("first request for caller-2 should be allowed")
	}
}

func TestLimiter_Refill(t *testing.T) {
	l := New(2, time.Second)

	base := time.Now()
	l.now = func() time.Time { return base }

	l.Allow("caller-1")
	l.Allow("caller-1")
	if l.Allow("caller-1") {
		t.Fatal("bucket should be empty")
	}

	// Advance past the window so the bucket fully replenishes.
	l.now = func() time.Time { return base.Add(2 * time.Second) }
	if !l.Allow("caller-1") {
		t.Error("bucket should have refilled")
	}
}

func TestLimiter_Status(t *testing.T) {
	l := New(10, time.Minute)

	limit, remaining, _ := l.Status("caller-1")
	if limit != 10 {
		t.Errorf("limit = %d, want 10", limit)
	}
	if remaining != 10 {
		t.Errorf("remaining = %d, want 10", remaining)
	}

	l.Allow("caller-1")
	_, remaining, resetAt := l.Status("caller-1")
	if remaining != 9 {
		t.Errorf("remaining after one request = %d, want 9", remaining)
	}
	if !resetAt.After(time.Now().Add(-time.Second)) {
		t.Errorf("resetAt = %v, want in the future", resetAt)
	}
}

func requestWithIdentity(uid uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	ctx := auth.ContextWithIdentity(context.Background(), &auth.Identity{UID: uid})
	return req.WithContext(ctx)
}

func TestMiddleware_SetsHeaders(t *testing.T) {
	l := New(5, time.Minute)
	handler := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithIdentity(uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "5" {
		t.Errorf("X-RateLimit-Remaining = %q, want 5", got)
	}
	if _, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64); err != nil {
		t.Errorf("X-RateLimit-Reset is not a unix timestamp: %v", err)
	}
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	l := New(1, time.Minute)
	rejected := 0
	handler := Middleware(l, func() { rejected++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	uid := uuid.New()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithIdentity(uid))
	if rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithIdentity(uid))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}
	if rejected != 1 {
		t.Errorf("onReject called %d times, want 1", rejected)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Error.Code != "rate_limited" {
		t.Errorf("error code = %q, want rate_limited", resp.Error.Code)
	}
}

func TestMiddleware_SkipsAnonymousRequests(t *testing.T) {
	l := New(1, time.Minute)
	handler := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/users", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("anonymous request %d status = %d, want 200", i+1, rr.Code)
		}
	}
}
