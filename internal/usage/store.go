package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stewardhq/steward/internal/paginate"
)

// Store provides read-only access to the trigger records written by the
// pipeline backend.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListTriggerRecords returns a page of raw trigger records matching the query,
// ordered by trigger_time DESC, trigger_id DESC, together with the total
// count and the next page token (empty when there are no more pages).
func (s *Store) ListTriggerRecords(ctx context.Context, q Query, pageSize int, pageToken string) ([]*TriggerRecord, int, string, error) {
	limit, err := paginate.Clamp(pageSize)
	if err != nil {
		return nil, 0, "", err
	}
	if limit == 0 {
		limit = paginate.DefaultPageSize
	}

	where, args := buildWhereClause(q)

	if pageToken != "" {
		ts, id, err := paginate.DecodeToken(pageToken)
		if err != nil {
			return nil, 0, "", err
		}
		where += fmt.Sprintf(" AND (trigger_time, trigger_id) < ($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, ts, id)
	}

	// Count and page are read inside one repeatable-read transaction so the
	// total reflects the same snapshot as the rows.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	countWhere, countArgs := buildWhereClause(q)
	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM trigger_records`+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, "", fmt.Errorf("counting trigger records: %w", err)
	}

	query := `SELECT trigger_id, pipeline_id, pipeline_uid, trigger_mode, status,
		compute_time_seconds, trigger_time
	FROM trigger_records` + where +
		` ORDER BY trigger_time DESC, trigger_id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit+1) // one extra row to detect a next page

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, "", fmt.Errorf("listing trigger records: %w", err)
	}
	defer rows.Close()

	records := []*TriggerRecord{}
	for rows.Next() {
		var r TriggerRecord
		if err := rows.Scan(
			&r.TriggerID, &r.PipelineID, &r.PipelineUID, &r.TriggerMode,
			&r.Status, &r.ComputeTimeSeconds, &r.TriggerTime,
		); err != nil {
			return nil, 0, "", fmt.Errorf("scanning trigger record: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, "", fmt.Errorf("iterating trigger records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, "", fmt.Errorf("committing transaction: %w", err)
	}

	records, nextToken := paginate.TrimPage(records, limit, func(r *TriggerRecord) string {
		return paginate.EncodeToken(r.TriggerTime, r.TriggerID)
	})

	return records, total, nextToken, nil
}

// ListTableRecords aggregates trigger outcomes per pipeline. Pipelines with
// no matching triggers are absent from the result.
func (s *Store) ListTableRecords(ctx context.Context, q Query) ([]*TableRecord, error) {
	where, args := buildWhereClause(q)

	query := `SELECT pipeline_id, pipeline_uid,
		COALESCE(SUM(CASE WHEN status = 'STATUS_COMPLETED' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'STATUS_ERRORED' THEN 1 ELSE 0 END), 0)
	FROM trigger_records` + where +
		` GROUP BY pipeline_id, pipeline_uid ORDER BY pipeline_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating trigger table records: %w", err)
	}
	defer rows.Close()

	records := []*TableRecord{}
	for rows.Next() {
		var r TableRecord
		if err := rows.Scan(&r.PipelineID, &r.PipelineUID, &r.CompletedCount, &r.ErroredCount); err != nil {
			return nil, fmt.Errorf("scanning trigger table record: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// ListChartRecords buckets trigger counts and compute time per pipeline over
// the given aggregation window. Buckets are aligned to the Unix epoch.
func (s *Store) ListChartRecords(ctx context.Context, q Query, window time.Duration) ([]*ChartRecord, error) {
	where, args := buildWhereClause(q)

	args = append(args, window.Seconds())
	bucket := fmt.Sprintf("to_timestamp(floor(extract(epoch FROM trigger_time) / $%d) * $%d)", len(args), len(args))

	query := `SELECT pipeline_id, pipeline_uid, ` + bucket + ` AS bucket,
		COUNT(*), COALESCE(SUM(compute_time_seconds), 0)
	FROM trigger_records` + where +
		` GROUP BY pipeline_id, pipeline_uid, bucket ORDER BY pipeline_id, bucket`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating trigger chart records: %w", err)
	}
	defer rows.Close()

	records := []*ChartRecord{}
	var current *ChartRecord
	for rows.Next() {
		var (
			pipelineID string
			r          ChartRecord
			bucketTime time.Time
			count      int64
			seconds    float64
		)
		if err := rows.Scan(&pipelineID, &r.PipelineUID, &bucketTime, &count, &seconds); err != nil {
			return nil, fmt.Errorf("scanning trigger chart record: %w", err)
		}
		if current == nil || current.PipelineID != pipelineID {
			current = &ChartRecord{
				PipelineID:         pipelineID,
				PipelineUID:        r.PipelineUID,
				TimeBuckets:        []time.Time{},
				TriggerCounts:      []int64{},
				ComputeTimeSeconds: []float64{},
			}
			records = append(records, current)
		}
		current.TimeBuckets = append(current.TimeBuckets, bucketTime)
		current.TriggerCounts = append(current.TriggerCounts, count)
		current.ComputeTimeSeconds = append(current.ComputeTimeSeconds, seconds)
	}
	return records, rows.Err()
}

// ListExecuteRecords returns a page of raw connector execution records
// matching the query, ordered by execute_time DESC, execute_id DESC, together
// with the total count and the next page token.
func (s *Store) ListExecuteRecords(ctx context.Context, q ExecuteQuery, pageSize int, pageToken string) ([]*ExecuteRecord, int, string, error) {
	limit, err := paginate.Clamp(pageSize)
	if err != nil {
		return nil, 0, "", err
	}
	if limit == 0 {
		limit = paginate.DefaultPageSize
	}

	where, args := buildExecuteWhereClause(q)

	if pageToken != "" {
		ts, id, err := paginate.DecodeToken(pageToken)
		if err != nil {
			return nil, 0, "", err
		}
		where += fmt.Sprintf(" AND (execute_time, execute_id) < ($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, ts, id)
	}

	// Count and page are read inside one repeatable-read transaction so the
	// total reflects the same snapshot as the rows.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	countWhere, countArgs := buildExecuteWhereClause(q)
	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM connector_executes`+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, "", fmt.Errorf("counting connector executions: %w", err)
	}

	query := `SELECT execute_id, connector_id, connector_uid, pipeline_id, pipeline_uid,
		status, compute_time_seconds, execute_time
	FROM connector_executes` + where +
		` ORDER BY execute_time DESC, execute_id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit+1) // one extra row to detect a next page

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, "", fmt.Errorf("listing connector executions: %w", err)
	}
	defer rows.Close()

	records := []*ExecuteRecord{}
	for rows.Next() {
		var r ExecuteRecord
		if err := rows.Scan(
			&r.ExecuteID, &r.ConnectorID, &r.ConnectorUID, &r.PipelineID,
			&r.PipelineUID, &r.Status, &r.ComputeTimeSeconds, &r.ExecuteTime,
		); err != nil {
			return nil, 0, "", fmt.Errorf("scanning connector execution: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, "", fmt.Errorf("iterating connector executions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, "", fmt.Errorf("committing transaction: %w", err)
	}

	records, nextToken := paginate.TrimPage(records, limit, func(r *ExecuteRecord) string {
		return paginate.EncodeToken(r.ExecuteTime, r.ExecuteID)
	})

	return records, total, nextToken, nil
}

// ListExecuteTableRecords aggregates execution outcomes per connector.
// Connectors with no matching executions are absent from the result.
func (s *Store) ListExecuteTableRecords(ctx context.Context, q ExecuteQuery) ([]*ExecuteTableRecord, error) {
	where, args := buildExecuteWhereClause(q)

	query := `SELECT connector_id, connector_uid,
		COALESCE(SUM(CASE WHEN status = 'STATUS_COMPLETED' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'STATUS_ERRORED' THEN 1 ELSE 0 END), 0)
	FROM connector_executes` + where +
		` GROUP BY connector_id, connector_uid ORDER BY connector_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating connector table records: %w", err)
	}
	defer rows.Close()

	records := []*ExecuteTableRecord{}
	for rows.Next() {
		var r ExecuteTableRecord
		if err := rows.Scan(&r.ConnectorID, &r.ConnectorUID, &r.CompletedCount, &r.ErroredCount); err != nil {
			return nil, fmt.Errorf("scanning connector table record: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// ListExecuteChartRecords buckets execution counts and compute time per
// connector over the given aggregation window. Buckets are aligned to the
// Unix epoch.
func (s *Store) ListExecuteChartRecords(ctx context.Context, q ExecuteQuery, window time.Duration) ([]*ExecuteChartRecord, error) {
	where, args := buildExecuteWhereClause(q)

	args = append(args, window.Seconds())
	bucket := fmt.Sprintf("to_timestamp(floor(extract(epoch FROM execute_time) / $%d) * $%d)", len(args), len(args))

	query := `SELECT connector_id, connector_uid, ` + bucket + ` AS bucket,
		COUNT(*), COALESCE(SUM(compute_time_seconds), 0)
	FROM connector_executes` + where +
		` GROUP BY connector_id, connector_uid, bucket ORDER BY connector_id, bucket`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating connector chart records: %w", err)
	}
	defer rows.Close()

	records := []*ExecuteChartRecord{}
	var current *ExecuteChartRecord
	for rows.Next() {
		var (
			connectorID string
			r           ExecuteChartRecord
			bucketTime  time.Time
			count       int64
			seconds     float64
		)
		if err := rows.Scan(&connectorID, &r.ConnectorUID, &bucketTime, &count, &seconds); err != nil {
			return nil, fmt.Errorf("scanning connector chart record: %w", err)
		}
		if current == nil || current.ConnectorID != connectorID {
			current = &ExecuteChartRecord{
				ConnectorID:        connectorID,
				ConnectorUID:       r.ConnectorUID,
				TimeBuckets:        []time.Time{},
				ExecuteCounts:      []int64{},
				ComputeTimeSeconds: []float64{},
			}
			records = append(records, current)
		}
		current.TimeBuckets = append(current.TimeBuckets, bucketTime)
		current.ExecuteCounts = append(current.ExecuteCounts, count)
		current.ComputeTimeSeconds = append(current.ComputeTimeSeconds, seconds)
	}
	return records, rows.Err()
}

// buildWhereClause constructs a WHERE clause and positional arguments from a
// Query. OwnerUID is always present so the returned clause is never empty.
func buildWhereClause(q Query) (string, []any) {
	args := []any{q.OwnerUID}
	conditions := []string{"owner_uid = $1"}

	if q.PipelineID != "" {
		args = append(args, q.PipelineID)
		conditions = append(conditions, fmt.Sprintf("pipeline_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.Mode != "" {
		args = append(args, q.Mode)
		conditions = append(conditions, fmt.Sprintf("trigger_mode = $%d", len(args)))
	}
	if !q.Start.IsZero() {
		args = append(args, q.Start)
		conditions = append(conditions, fmt.Sprintf("trigger_time >= $%d", len(args)))
	}
	if !q.Stop.IsZero() {
		args = append(args, q.Stop)
		conditions = append(conditions, fmt.Sprintf("trigger_time <= $%d", len(args)))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// buildExecuteWhereClause is buildWhereClause for the connector execution
// table.
func buildExecuteWhereClause(q ExecuteQuery) (string, []any) {
	args := []any{q.OwnerUID}
	conditions := []string{"owner_uid = $1"}

	if q.ConnectorID != "" {
		args = append(args, q.ConnectorID)
		conditions = append(conditions, fmt.Sprintf("connector_id = $%d", len(args)))
	}
	if q.PipelineID != "" {
		args = append(args, q.PipelineID)
		conditions = append(conditions, fmt.Sprintf("pipeline_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if !q.Start.IsZero() {
		args = append(args, q.Start)
		conditions = append(conditions, fmt.Sprintf("execute_time >= $%d", len(args)))
	}
	if !q.Stop.IsZero() {
		args = append(args, q.Stop)
		conditions = append(conditions, fmt.Sprintf("execute_time <= $%d", len(args)))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}
