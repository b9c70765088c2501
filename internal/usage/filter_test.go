package usage

import (
	"errors"
	"testing"
	"time"

	"github.com/stewardhq/steward/internal/errdomain"
)

func TestParseFilter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stop := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expr    string
		want    Query
		wantErr bool
	}{
		{
			name: "empty",
			expr: "",
			want: Query{},
		},
		{
			name: "pipeline only",
			expr: `pipelineId="demo"`,
			want: Query{PipelineID: "demo"},
		},
		{
			name: "full conjunction",
			expr: `pipelineId="demo" AND status=STATUS_COMPLETED AND triggerMode=MODE_SYNC AND start='2024-01-01T00:00:00Z' AND stop='2024-02-01T00:00:00Z'`,
			want: Query{PipelineID: "demo", Status: StatusCompleted, Mode: ModeSync, Start: start, Stop: stop},
		},
		{
			name: "lowercase and",
			expr: `status=STATUS_ERRORED and pipelineId='p'`,
			want: Query{PipelineID: "p", Status: StatusErrored},
		},
		{
			name: "timestamp function form",
			expr: `start=timestamp("2024-01-01T00:00:00Z")`,
			want: Query{Start: start},
		},
		{
			name: "quoted value containing and",
			expr: `pipelineId="mix and match"`,
			want: Query{PipelineID: "mix and match"},
		},
		{
			name:    "unknown field",
			expr:    `ownerUid="whatever"`,
			wantErr: true,
		},
		{
			name:    "unknown status",
			expr:    `status=STATUS_RUNNING`,
			wantErr: true,
		},
		{
			name:    "bad timestamp",
			expr:    `start='yesterday'`,
			wantErr: true,
		},
		{
			name:    "missing value",
			expr:    `pipelineId=`,
			wantErr: true,
		},
		{
			name:    "no comparison",
			expr:    `pipelineId`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter(tt.expr)
			if tt.wantErr {
				if !errors.Is(err, errdomain.ErrInvalidArgument) {
					t.Fatalf("error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFilter: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseExecuteFilter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expr    string
		want    ExecuteQuery
		wantErr bool
	}{
		{
			name: "empty",
			expr: "",
			want: ExecuteQuery{},
		},
		{
			name: "connector only",
			expr: `connectorId="weaviate"`,
			want: ExecuteQuery{ConnectorID: "weaviate"},
		},
		{
			name: "full conjunction",
			expr: `connectorId="weaviate" AND pipelineId="demo" AND status=STATUS_ERRORED AND start='2024-01-01T00:00:00Z'`,
			want: ExecuteQuery{ConnectorID: "weaviate", PipelineID: "demo", Status: StatusErrored, Start: start},
		},
		{
			name:    "trigger-only field",
			expr:    `triggerMode=MODE_SYNC`,
			wantErr: true,
		},
		{
			name:    "unknown status",
			expr:    `status=STATUS_RUNNING`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExecuteFilter(tt.expr)
			if tt.wantErr {
				if !errors.Is(err, errdomain.ErrInvalidArgument) {
					t.Fatalf("error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExecuteFilter: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExecuteQueryMerge(t *testing.T) {
	base := ExecuteQuery{ConnectorID: "from-params"}
	merged := base.Merge(ExecuteQuery{ConnectorID: "from-filter", PipelineID: "demo"})

	if merged.ConnectorID != "from-params" {
		t.Errorf("discrete param must win, got %q", merged.ConnectorID)
	}
	if merged.PipelineID != "demo" {
		t.Errorf("pipeline should come from filter, got %q", merged.PipelineID)
	}
}

func TestQueryMerge(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	base := Query{PipelineID: "from-params"}
	merged := base.Merge(Query{PipelineID: "from-filter", Status: StatusCompleted, Start: start})

	if merged.PipelineID != "from-params" {
		t.Errorf("discrete param must win, got %q", merged.PipelineID)
	}
	if merged.Status != StatusCompleted {
		t.Errorf("status should come from filter, got %q", merged.Status)
	}
	if !merged.Start.Equal(start) {
		t.Errorf("start should come from filter, got %v", merged.Start)
	}
}
