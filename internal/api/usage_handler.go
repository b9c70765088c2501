package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stewardhq/steward/internal/auth"
	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/usage"
)

// defaultAggregationWindow buckets chart records hourly unless the caller
// asks otherwise.
const defaultAggregationWindow = time.Hour

// UsageStore is the read surface the metrics passthrough handlers need.
type UsageStore interface {
	ListTriggerRecords(ctx context.Context, q usage.Query, pageSize int, pageToken string) ([]*usage.TriggerRecord, int, string, error)
	ListTableRecords(ctx context.Context, q usage.Query) ([]*usage.TableRecord, error)
	ListChartRecords(ctx context.Context, q usage.Query, window time.Duration) ([]*usage.ChartRecord, error)
	ListExecuteRecords(ctx context.Context, q usage.ExecuteQuery, pageSize int, pageToken string) ([]*usage.ExecuteRecord, int, string, error)
	ListExecuteTableRecords(ctx context.Context, q usage.ExecuteQuery) ([]*usage.ExecuteTableRecord, error)
	ListExecuteChartRecords(ctx context.Context, q usage.ExecuteQuery, window time.Duration) ([]*usage.ExecuteChartRecord, error)
}

// usageHandler serves the read-only pipeline trigger listings.
type usageHandler struct {
	store UsageStore
}

func newUsageHandler(store UsageStore) *usageHandler {
	return &usageHandler{store: store}
}

// query builds the shared filter set from the request. The owner is always
// the authenticated caller.
func (h *usageHandler) query(w http.ResponseWriter, r *http.Request) (usage.Query, bool) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeDomainError(w, fmt.Errorf("%w: no authenticated caller", errdomain.ErrUnauthenticated))
		return usage.Query{}, false
	}

	q := usage.Query{
		OwnerUID:   id.UID,
		PipelineID: r.URL.Query().Get("pipeline_id"),
		Status:     usage.TriggerStatus(r.URL.Query().Get("status")),
	}

	var ok bool
	if q.Start, q.Stop, ok = timeRangeParams(w, r); !ok {
		return usage.Query{}, false
	}

	// A filter expression can carry the same constraints; discrete query
	// parameters take precedence on overlap.
	if raw := r.URL.Query().Get("filter"); raw != "" {
		fq, err := usage.ParseFilter(raw)
		if err != nil {
			writeDomainError(w, err)
			return usage.Query{}, false
		}
		q = q.Merge(fq)
	}

	return q, true
}

// executeQuery is query for the connector execution listings.
func (h *usageHandler) executeQuery(w http.ResponseWriter, r *http.Request) (usage.ExecuteQuery, bool) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeDomainError(w, fmt.Errorf("%w: no authenticated caller", errdomain.ErrUnauthenticated))
		return usage.ExecuteQuery{}, false
	}

	q := usage.ExecuteQuery{
		OwnerUID:    id.UID,
		ConnectorID: r.URL.Query().Get("connector_id"),
		PipelineID:  r.URL.Query().Get("pipeline_id"),
		Status:      usage.TriggerStatus(r.URL.Query().Get("status")),
	}

	var ok bool
	if q.Start, q.Stop, ok = timeRangeParams(w, r); !ok {
		return usage.ExecuteQuery{}, false
	}

	if raw := r.URL.Query().Get("filter"); raw != "" {
		fq, err := usage.ParseExecuteFilter(raw)
		if err != nil {
			writeDomainError(w, err)
			return usage.ExecuteQuery{}, false
		}
		q = q.Merge(fq)
	}

	return q, true
}

// timeRangeParams parses the optional start and stop query parameters.
func timeRangeParams(w http.ResponseWriter, r *http.Request) (start, stop time.Time, ok bool) {
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeDomainError(w, fmt.Errorf("%w: start must be RFC 3339", errdomain.ErrInvalidArgument))
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if raw := r.URL.Query().Get("stop"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeDomainError(w, fmt.Errorf("%w: stop must be RFC 3339", errdomain.ErrInvalidArgument))
			return time.Time{}, time.Time{}, false
		}
		stop = t
	}
	return start, stop, true
}

// ListTriggers handles GET /metrics/triggers.
func (h *usageHandler) ListTriggers(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}

	pageSize, ok := pageSizeParam(w, r)
	if !ok {
		return
	}

	records, total, nextToken, err := h.store.ListTriggerRecords(r.Context(), q, pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []*usage.TriggerRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pipeline_trigger_records": records,
		"next_page_token":          nextToken,
		"total_size":               total,
	})
}

// ListTables handles GET /metrics/tables.
func (h *usageHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}

	records, err := h.store.ListTableRecords(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []*usage.TableRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pipeline_trigger_table_records": records,
	})
}

// ListCharts handles GET /metrics/charts.
func (h *usageHandler) ListCharts(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}

	window, ok := windowParam(w, r)
	if !ok {
		return
	}

	records, err := h.store.ListChartRecords(r.Context(), q, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []*usage.ChartRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pipeline_trigger_chart_records": records,
	})
}

// ListConnectorExecutes handles GET /metrics/connector/executes.
func (h *usageHandler) ListConnectorExecutes(w http.ResponseWriter, r *http.Request) {
	q, ok := h.executeQuery(w, r)
	if !ok {
		return
	}

	pageSize, ok := pageSizeParam(w, r)
	if !ok {
		return
	}

	records, total, nextToken, err := h.store.ListExecuteRecords(r.Context(), q, pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []*usage.ExecuteRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connector_execute_records": records,
		"next_page_token":           nextToken,
		"total_size":                total,
	})
}

// ListConnectorTables handles GET /metrics/connector/tables.
func (h *usageHandler) ListConnectorTables(w http.ResponseWriter, r *http.Request) {
	q, ok := h.executeQuery(w, r)
	if !ok {
		return
	}

	records, err := h.store.ListExecuteTableRecords(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []*usage.ExecuteTableRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connector_execute_table_records": records,
	})
}

// ListConnectorCharts handles GET /metrics/connector/charts.
func (h *usageHandler) ListConnectorCharts(w http.ResponseWriter, r *http.Request) {
	q, ok := h.executeQuery(w, r)
	if !ok {
		return
	}

	window, ok := windowParam(w, r)
	if !ok {
		return
	}

	records, err := h.store.ListExecuteChartRecords(r.Context(), q, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []*usage.ExecuteChartRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connector_execute_chart_records": records,
	})
}

// pageSizeParam parses the optional page_size query parameter.
func pageSizeParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page_size")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeDomainError(w, fmt.Errorf("%w: page_size must be an integer", errdomain.ErrInvalidArgument))
		return 0, false
	}
	return n, true
}

// windowParam parses the optional aggregation_window query parameter.
func windowParam(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("aggregation_window")
	if raw == "" {
		return defaultAggregationWindow, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		writeDomainError(w, fmt.Errorf("%w: aggregation_window must be a positive duration", errdomain.ErrInvalidArgument))
		return 0, false
	}
	return d, true
}
