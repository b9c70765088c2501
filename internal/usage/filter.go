package usage

import (
	"fmt"
	"strings"
	"time"

	"github.com/stewardhq/steward/internal/errdomain"
)

// ParseFilter decodes a filter expression into a Query. The grammar is a
// conjunction of comparisons over the fields the trigger listings index:
//
//	pipelineId="demo" AND status=STATUS_COMPLETED AND start='2024-01-01T00:00:00Z'
//
// Supported fields: pipelineId (string), status, triggerMode (enums),
// start and stop (RFC 3339 timestamps, optionally wrapped in timestamp()).
// Anything else fails with ErrInvalidArgument. The owner scope is never part
// of the expression; callers set Query.OwnerUID themselves.
func ParseFilter(expr string) (Query, error) {
	var q Query
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return q, nil
	}

	for _, clause := range splitAnd(expr) {
		field, value, err := splitComparison(clause)
		if err != nil {
			return Query{}, err
		}

		switch field {
		case "pipelineId":
			q.PipelineID = value
		case "status":
			s := TriggerStatus(value)
			if s != StatusCompleted && s != StatusErrored {
				return Query{}, fmt.Errorf("%w: unknown status %q in filter", errdomain.ErrInvalidArgument, value)
			}
			q.Status = s
		case "triggerMode":
			m := TriggerMode(value)
			if m != ModeSync && m != ModeAsync {
				return Query{}, fmt.Errorf("%w: unknown trigger mode %q in filter", errdomain.ErrInvalidArgument, value)
			}
			q.Mode = m
		case "start":
			t, err := parseFilterTime(value)
			if err != nil {
				return Query{}, err
			}
			q.Start = t
		case "stop":
			t, err := parseFilterTime(value)
			if err != nil {
				return Query{}, err
			}
			q.Stop = t
		default:
			return Query{}, fmt.Errorf("%w: unknown filter field %q", errdomain.ErrInvalidArgument, field)
		}
	}

	return q, nil
}

// Merge overlays the fields set in other onto q, leaving q's owner scope
// untouched. Discrete query parameters win over the filter expression.
func (q Query) Merge(other Query) Query {
	if q.PipelineID == "" {
		q.PipelineID = other.PipelineID
	}
	if q.Status == "" {
		q.Status = other.Status
	}
	if q.Mode == "" {
		q.Mode = other.Mode
	}
	if q.Start.IsZero() {
		q.Start = other.Start
	}
	if q.Stop.IsZero() {
		q.Stop = other.Stop
	}
	return q
}

// ParseExecuteFilter decodes a filter expression into an ExecuteQuery. The
// grammar is the same conjunction form ParseFilter accepts; the fields are
// the ones the connector execution listings index: connectorId, pipelineId,
// status, start and stop.
func ParseExecuteFilter(expr string) (ExecuteQuery, error) {
	var q ExecuteQuery
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return q, nil
	}

	for _, clause := range splitAnd(expr) {
		field, value, err := splitComparison(clause)
		if err != nil {
			return ExecuteQuery{}, err
		}

		switch field {
		case "connectorId":
			q.ConnectorID = value
		case "pipelineId":
			q.PipelineID = value
		case "status":
			s := TriggerStatus(value)
			if s != StatusCompleted && s != StatusErrored {
				return ExecuteQuery{}, fmt.Errorf("%w: unknown status %q in filter", errdomain.ErrInvalidArgument, value)
			}
			q.Status = s
		case "start":
			t, err := parseFilterTime(value)
			if err != nil {
				return ExecuteQuery{}, err
			}
			q.Start = t
		case "stop":
			t, err := parseFilterTime(value)
			if err != nil {
				return ExecuteQuery{}, err
			}
			q.Stop = t
		default:
			return ExecuteQuery{}, fmt.Errorf("%w: unknown filter field %q", errdomain.ErrInvalidArgument, field)
		}
	}

	return q, nil
}

// Merge overlays the fields set in other onto q, leaving q's owner scope
// untouched. Discrete query parameters win over the filter expression.
func (q ExecuteQuery) Merge(other ExecuteQuery) ExecuteQuery {
	if q.ConnectorID == "" {
		q.ConnectorID = other.ConnectorID
	}
	if q.PipelineID == "" {
		q.PipelineID = other.PipelineID
	}
	if q.Status == "" {
		q.Status = other.Status
	}
	if q.Start.IsZero() {
		q.Start = other.Start
	}
	if q.Stop.IsZero() {
		q.Stop = other.Stop
	}
	return q
}

func splitAnd(expr string) []string {
	var clauses []string
	rest := expr
	for {
		idx := indexFoldAND(rest)
		if idx < 0 {
			clauses = append(clauses, strings.TrimSpace(rest))
			return clauses
		}
		clauses = append(clauses, strings.TrimSpace(rest[:idx]))
		rest = rest[idx+len(" AND "):]
	}
}

// indexFoldAND finds a case-insensitive " AND " separator outside quotes.
func indexFoldAND(s string) int {
	inQuote := byte(0)
	for i := 0; i+5 <= len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			continue
		}
		if c == ' ' && strings.EqualFold(s[i:i+5], " AND ") {
			return i
		}
	}
	return -1
}

func splitComparison(clause string) (field, value string, err error) {
	op := strings.IndexAny(clause, "=><")
	if op <= 0 {
		return "", "", fmt.Errorf("%w: malformed filter clause %q", errdomain.ErrInvalidArgument, clause)
	}

	field = strings.TrimSpace(clause[:op])
	value = strings.TrimSpace(strings.TrimLeft(clause[op:], "=><"))
	if value == "" {
		return "", "", fmt.Errorf("%w: missing value in filter clause %q", errdomain.ErrInvalidArgument, clause)
	}
	return field, unquote(value), nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func parseFilterTime(value string) (time.Time, error) {
	if strings.HasPrefix(value, "timestamp(") && strings.HasSuffix(value, ")") {
		value = unquote(strings.TrimSuffix(strings.TrimPrefix(value, "timestamp("), ")"))
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp %q in filter", errdomain.ErrInvalidArgument, value)
	}
	return t.UTC(), nil
}
