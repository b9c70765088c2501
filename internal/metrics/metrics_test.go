package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RegistersCollectors(t *testing.T) {
	m := New()

	m.IncAuthSuccess("jwt")
	m.IncAuthFailure("api_token")
	m.IncRateLimitRejection("public")
	m.IncResourceWrite("users", "update", "ok")
	m.IncGRPCRequest("/steward.v1.Public/GetUser", "OK")
	m.HTTPRequestsTotal.WithLabelValues("public", "GET", "/v1/users", "200").Inc()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"steward_http_requests_total",
		"steward_grpc_requests_total",
		"steward_resource_writes_total",
		"steward_ratelimit_rejections_total",
		"steward_auth_failures_total",
		"steward_auth_successes_total",
		"steward_server_start_time_seconds",
		"go_goroutines",
	} {
		if !names[want] {
			t.Errorf("metric family %q not registered", want)
		}
	}
}

func TestRegisterDBPoolCollector(t *testing.T) {
	m := New()
	m.RegisterDBPoolCollector(func() (int32, int32, int32) {
		return 10, 7, 3
	})

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}

	found := map[string]float64{}
	for _, f := range families {
		switch f.GetName() {
		case "steward_db_pool_total_conns", "steward_db_pool_idle_conns", "steward_db_pool_acquired_conns":
			found[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}

	if found["steward_db_pool_total_conns"] != 10 {
		t.Errorf("total conns = %v, want 10", found["steward_db_pool_total_conns"])
	}
	if found["steward_db_pool_idle_conns"] != 7 {
		t.Errorf("idle conns = %v, want 7", found["steward_db_pool_idle_conns"])
	}
	if found["steward_db_pool_acquired_conns"] != 3 {
		t.Errorf("acquired conns = %v, want 3", found["steward_db_pool_acquired_conns"])
	}
}

func TestHandler_ServesSummary(t *testing.T) {
	m := New()
	m.HTTPRequestsTotal.WithLabelValues("public", "GET", "/v1/users", "200").Add(8)
	m.HTTPRequestsTotal.WithLabelValues("public", "GET", "/v1/users/{id}", "404").Add(2)
	m.IncAuthSuccess("header")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics/live", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var s Summary
	if err := json.NewDecoder(rr.Body).Decode(&s); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}

	if s.Public.TotalRequests != 10 {
		t.Errorf("public total = %v, want 10", s.Public.TotalRequests)
	}
	if s.Public.ErrorRate != 0.2 {
		t.Errorf("public error rate = %v, want 0.2", s.Public.ErrorRate)
	}
	if s.Auth.Successes != 1 {
		t.Errorf("auth successes = %v, want 1", s.Auth.Successes)
	}
	if s.Server.StartTime == 0 {
		t.Error("server start time should be set")
	}
}
