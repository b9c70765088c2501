package usage

import (
	"time"

	"github.com/google/uuid"
)

// TriggerStatus is the terminal outcome of a pipeline trigger.
type TriggerStatus string

const (
	StatusCompleted TriggerStatus = "STATUS_COMPLETED"
	StatusErrored   TriggerStatus = "STATUS_ERRORED"
)

// TriggerMode distinguishes synchronous from asynchronous triggers.
type TriggerMode string

const (
	ModeSync  TriggerMode = "MODE_SYNC"
	ModeAsync TriggerMode = "MODE_ASYNC"
)

// TriggerRecord is one pipeline trigger event as recorded by the pipeline
// backend. The management surface only reads these back out.
type TriggerRecord struct {
	TriggerID          string        `json:"pipeline_trigger_id"`
	PipelineID         string        `json:"pipeline_id"`
	PipelineUID        uuid.UUID     `json:"pipeline_uid"`
	TriggerMode        TriggerMode   `json:"trigger_mode"`
	Status             TriggerStatus `json:"status"`
	ComputeTimeSeconds float64       `json:"compute_time_duration"`
	TriggerTime        time.Time     `json:"trigger_time"`
}

// TableRecord aggregates trigger outcomes per pipeline.
type TableRecord struct {
	PipelineID     string    `json:"pipeline_id"`
	PipelineUID    uuid.UUID `json:"pipeline_uid"`
	CompletedCount int64     `json:"trigger_count_completed"`
	ErroredCount   int64     `json:"trigger_count_errored"`
}

// ChartRecord holds time-bucketed trigger counts for one pipeline.
type ChartRecord struct {
	PipelineID         string      `json:"pipeline_id"`
	PipelineUID        uuid.UUID   `json:"pipeline_uid"`
	TimeBuckets        []time.Time `json:"time_buckets"`
	TriggerCounts      []int64     `json:"trigger_counts"`
	ComputeTimeSeconds []float64   `json:"compute_time_duration"`
}

// Query carries the filters shared by the trigger listing endpoints. OwnerUID
// is always set by the handler from the caller identity.
type Query struct {
	OwnerUID   uuid.UUID
	PipelineID string
	Status     TriggerStatus
	Mode       TriggerMode
	Start      time.Time
	Stop       time.Time
}

// ExecuteRecord is one connector execution event, recorded whenever a
// pipeline run invokes a connector. Status values are shared with triggers.
type ExecuteRecord struct {
	ExecuteID          string        `json:"connector_execute_id"`
	ConnectorID        string        `json:"connector_id"`
	ConnectorUID       uuid.UUID     `json:"connector_uid"`
	PipelineID         string        `json:"pipeline_id"`
	PipelineUID        uuid.UUID     `json:"pipeline_uid"`
	Status             TriggerStatus `json:"status"`
	ComputeTimeSeconds float64       `json:"compute_time_duration"`
	ExecuteTime        time.Time     `json:"execute_time"`
}

// ExecuteTableRecord aggregates execution outcomes per connector.
type ExecuteTableRecord struct {
	ConnectorID    string    `json:"connector_id"`
	ConnectorUID   uuid.UUID `json:"connector_uid"`
	CompletedCount int64     `json:"execute_count_completed"`
	ErroredCount   int64     `json:"execute_count_errored"`
}

// ExecuteChartRecord holds time-bucketed execution counts for one connector.
type ExecuteChartRecord struct {
	ConnectorID        string      `json:"connector_id"`
	ConnectorUID       uuid.UUID   `json:"connector_uid"`
	TimeBuckets        []time.Time `json:"time_buckets"`
	ExecuteCounts      []int64     `json:"execute_counts"`
	ComputeTimeSeconds []float64   `json:"compute_time_duration"`
}

// ExecuteQuery carries the filters shared by the connector execution listing
// endpoints. OwnerUID is always set by the handler from the caller identity.
type ExecuteQuery struct {
	OwnerUID    uuid.UUID
	ConnectorID string
	PipelineID  string
	Status      TriggerStatus
	Start       time.Time
	Stop        time.Time
}
