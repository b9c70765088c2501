package usage

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildWhereClause(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name     string
		q        Query
		wantSQL  []string
		wantArgs int
	}{
		{
			name:     "owner only",
			q:        Query{OwnerUID: owner},
			wantSQL:  []string{"owner_uid = $1"},
			wantArgs: 1,
		},
		{
			name:     "pipeline and status",
			q:        Query{OwnerUID: owner, PipelineID: "ingest", Status: StatusErrored},
			wantSQL:  []string{"owner_uid = $1", "pipeline_id = $2", "status = $3"},
			wantArgs: 3,
		},
		{
			name: "time range",
			q: Query{
				OwnerUID: owner,
				Start:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				Stop:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			},
			wantSQL:  []string{"trigger_time >= $2", "trigger_time <= $3"},
			wantArgs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildWhereClause(tt.q)
			if !strings.HasPrefix(where, " WHERE ") {
				t.Fatalf("clause %q does not start with WHERE", where)
			}
			for _, want := range tt.wantSQL {
				if !strings.Contains(where, want) {
					t.Errorf("clause %q missing %q", where, want)
				}
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestBuildExecuteWhereClause(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name     string
		q        ExecuteQuery
		wantSQL  []string
		wantArgs int
	}{
		{
			name:     "owner only",
			q:        ExecuteQuery{OwnerUID: owner},
			wantSQL:  []string{"owner_uid = $1"},
			wantArgs: 1,
		},
		{
			name:     "connector and pipeline",
			q:        ExecuteQuery{OwnerUID: owner, ConnectorID: "weaviate", PipelineID: "ingest"},
			wantSQL:  []string{"owner_uid = $1", "connector_id = $2", "pipeline_id = $3"},
			wantArgs: 3,
		},
		{
			name: "status and time range",
			q: ExecuteQuery{
				OwnerUID: owner,
				Status:   StatusErrored,
				Start:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			wantSQL:  []string{"status = $2", "execute_time >= $3"},
			wantArgs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildExecuteWhereClause(tt.q)
			if !strings.HasPrefix(where, " WHERE ") {
				t.Fatalf("clause %q does not start with WHERE", where)
			}
			for _, want := range tt.wantSQL {
				if !strings.Contains(where, want) {
					t.Errorf("clause %q missing %q", where, want)
				}
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}
